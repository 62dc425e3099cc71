package ledger

// ClassifyIntraday assigns per-row intraday counts within each (symbol, date)
// group. Each SELL row consumes from the group's available BUY quantity; the
// consumed amount becomes the SELL row's intraday count and is mirrored onto
// the group's BUY rows in encounter order. Rows must already be in canonical
// order so BUY rows precede SELL rows inside a group.
func ClassifyIntraday(rows []EnrichedTransaction) {
	groups := make(map[string][]int, len(rows))
	order := make([]string, 0, len(rows))
	for i := range rows {
		key := rows[i].GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	for _, key := range order {
		classifyGroup(rows, groups[key])
	}
}

func classifyGroup(rows []EnrichedTransaction, indices []int) {
	var buys []int
	var available int64
	for _, i := range indices {
		rows[i].IntradayCount = 0
		if rows[i].Type == TradeBuy {
			buys = append(buys, i)
			available += rows[i].AbsQuantity()
		}
	}
	if available == 0 {
		return
	}

	buyCursor := 0
	var buyConsumed int64 // consumed from rows[buys[buyCursor]]
	for _, i := range indices {
		if rows[i].Type != TradeSell {
			continue
		}
		matched := rows[i].AbsQuantity()
		if matched > available {
			matched = available
		}
		rows[i].IntradayCount = matched
		available -= matched

		// Mirror the matched quantity across BUY rows in encounter order.
		for matched > 0 && buyCursor < len(buys) {
			b := buys[buyCursor]
			capacity := rows[b].AbsQuantity() - buyConsumed
			take := matched
			if take > capacity {
				take = capacity
			}
			rows[b].IntradayCount += take
			buyConsumed += take
			matched -= take
			if buyConsumed == rows[b].AbsQuantity() {
				buyCursor++
				buyConsumed = 0
			}
		}
	}
}
