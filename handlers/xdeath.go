package handlers

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeathRecord is one entry of the broker-maintained x-death header. The
// broker appends a record (or bumps its count) each time a message is
// dead-lettered, naming the queue it died on. The header is read-only input
// here; this package never writes it.
type DeathRecord struct {
	Queue       string
	Exchange    string
	Reason      string
	Count       int64
	RoutingKeys []string
}

// ParseDeaths extracts the x-death history from delivery headers. Missing or
// malformed entries are skipped rather than reported; the header is
// broker-populated and a defect in it is not actionable per message.
func ParseDeaths(headers amqp.Table) []DeathRecord {
	if headers == nil {
		return nil
	}

	raw, ok := headers["x-death"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}

	deaths := make([]DeathRecord, 0, len(raw))
	for _, entry := range raw {
		table, ok := entry.(amqp.Table)
		if !ok {
			continue
		}

		record := DeathRecord{
			Queue:    tableString(table, "queue"),
			Exchange: tableString(table, "exchange"),
			Reason:   tableString(table, "reason"),
			Count:    tableInt64(table, "count"),
		}

		if keys, ok := table["routing-keys"].([]interface{}); ok {
			for _, k := range keys {
				if s, ok := k.(string); ok {
					record.RoutingKeys = append(record.RoutingKeys, s)
				}
			}
		}

		deaths = append(deaths, record)
	}

	return deaths
}

// FailureCount reports how many times a message has previously died on the
// named worker queue. Records for other queues (a shared retry queue, for
// example) are excluded. The count reflects prior deliveries only, not the
// failure currently being handled.
func FailureCount(headers amqp.Table, queue string) int {
	count := 0
	for _, death := range ParseDeaths(headers) {
		if death.Queue == queue {
			count++
		}
	}
	return count
}

// tableString safely extracts a string from an AMQP table.
func tableString(table amqp.Table, key string) string {
	if val, ok := table[key].(string); ok {
		return val
	}
	return ""
}

// tableInt64 safely extracts an integer from an AMQP table.
func tableInt64(table amqp.Table, key string) int64 {
	switch val := table[key].(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case float64:
		return int64(val)
	}
	return 0
}
