package main

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// db returns the named database if it answers a ping.
func (s *session) db(name string) *sql.DB {
	db, ok := s.dbs[name]
	if !ok {
		fmt.Printf("  %s[x] unknown db %q (api, audit, loadstats)%s\n", Red, name, Reset)
		return nil
	}
	if err := db.Ping(); err != nil {
		fmt.Printf("  %s[x] %s db not reachable: %v%s\n", Red, name, err, Reset)
		return nil
	}
	return db
}

func (s *session) showProfiles() {
	db := s.db("api")
	if db == nil {
		return
	}
	rows, err := db.Query(`SELECT id, email, role, is_active, COALESCE(provider, ''), created_at
		FROM users ORDER BY created_at DESC LIMIT 20`)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	defer rows.Close()

	fmt.Printf("  %s%-38s %-28s %-6s %-7s %-10s %s%s\n", Bold, "ID", "EMAIL", "ROLE", "ACTIVE", "PROVIDER", "CREATED", Reset)
	for rows.Next() {
		var id, email, role, provider string
		var active bool
		var created time.Time
		if err := rows.Scan(&id, &email, &role, &active, &provider, &created); err != nil {
			fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
			return
		}
		color := Green
		if !active {
			color = Yellow
		}
		fmt.Printf("  %-38s %-28s %-6s %s%-7t%s %-10s %s\n",
			id, email, role, color, active, Reset, provider, created.Format("2006-01-02 15:04"))
	}
}

func (s *session) showEvents() {
	db := s.db("audit")
	if db == nil {
		return
	}
	rows, err := db.Query(`SELECT event_id, event_type, user_id, COALESCE(email, ''), recorded_at
		FROM user_event_log ORDER BY recorded_at DESC LIMIT 20`)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	defer rows.Close()

	fmt.Printf("  %s%-38s %-16s %-38s %-25s %s%s\n", Bold, "EVENT_ID", "TYPE", "USER", "EMAIL", "TIME", Reset)
	fmt.Printf("  %s%s%s\n", Dim, strings.Repeat("-", 130), Reset)
	for rows.Next() {
		var eventID, eventType, userID, email string
		var at time.Time
		if err := rows.Scan(&eventID, &eventType, &userID, &email, &at); err != nil {
			fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
			return
		}
		fmt.Printf("  %-38s %s%-16s%s %-38s %-25s %s\n",
			eventID, Cyan, eventType, Reset, userID, email, at.Format("15:04:05"))
	}
}

func (s *session) showMetrics() {
	db := s.db("loadstats")
	if db == nil {
		return
	}
	rows, err := db.Query(`SELECT metric_date::text, event_type, count
		FROM login_metrics ORDER BY metric_date DESC, event_type LIMIT 30`)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	defer rows.Close()

	fmt.Printf("  %s%-12s %-20s %s%s\n", Bold, "DATE", "TYPE", "COUNT", Reset)
	fmt.Printf("  %s%s%s\n", Dim, strings.Repeat("-", 45), Reset)
	for rows.Next() {
		var date, eventType string
		var count int
		if err := rows.Scan(&date, &eventType, &count); err != nil {
			fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
			return
		}
		fmt.Printf("  %-12s %-20s %s%s%s %d\n", date, eventType, Green, bar(count, 40), Reset, count)
	}
}

func (s *session) showDaily() {
	db := s.db("loadstats")
	if db == nil {
		return
	}
	rows, err := db.Query(`SELECT metric_date::text, SUM(count)
		FROM login_metrics GROUP BY metric_date ORDER BY metric_date DESC LIMIT 14`)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	defer rows.Close()

	fmt.Printf("  %s%sDaily Logins%s\n", Bold, White, Reset)
	for rows.Next() {
		var date string
		var total int
		if err := rows.Scan(&date, &total); err != nil {
			fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
			return
		}
		fmt.Printf("  %-12s %s%s%s %d\n", date, Green, bar(total, 50), Reset, total)
	}
}

func (s *session) showIdempotencyKeys(name string) {
	db := s.db(name)
	if db == nil {
		return
	}
	rows, err := db.Query(`SELECT consumer, event_id, processed_at
		FROM idempotency_keys ORDER BY processed_at DESC LIMIT 10`)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	defer rows.Close()

	fmt.Printf("  %s%-10s %-38s %s%s\n", Bold, "CONSUMER", "EVENT_ID", "PROCESSED_AT", Reset)
	for rows.Next() {
		var consumer, id string
		var at time.Time
		if err := rows.Scan(&consumer, &id, &at); err != nil {
			fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
			return
		}
		fmt.Printf("  %-10s %-38s %s\n", consumer, id, at.Format("2006-01-02 15:04:05"))
	}
}

func (s *session) showTables(name string) {
	db := s.db(name)
	if db == nil {
		return
	}
	rows, err := db.Query("SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename")
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	defer rows.Close()

	fmt.Printf("  %s%s%s tables:\n", Bold, name, Reset)
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return
		}
		fmt.Printf("  - %s\n", table)
	}
}

func (s *session) rawSQL(name, query string) {
	db := s.db(name)
	if db == nil {
		return
	}
	rows, err := db.Query(query)
	if err != nil {
		fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
		return
	}
	defer rows.Close()

	cols, _ := rows.Columns()
	fmt.Printf("  %s%s%s\n", Bold, strings.Join(cols, "\t"), Reset)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			fmt.Printf("  %s[x] %v%s\n", Red, err, Reset)
			return
		}
		parts := make([]string, len(cols))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			parts[i] = fmt.Sprintf("%v", v)
		}
		fmt.Printf("  %s\n", strings.Join(parts, "\t"))
	}
}

func bar(n, width int) string {
	return strings.Repeat("#", min(n, width))
}
