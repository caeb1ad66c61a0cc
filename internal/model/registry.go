package model

// All lists every table the service owns, in dependency order.
func All() []interface{} {
	return []interface{}{
		&ClientSession{},
		&MiniSession{},
		&SessionMessage{},
		&PsvsPosition{},
		&SupervisionFeedback{},
	}
}
