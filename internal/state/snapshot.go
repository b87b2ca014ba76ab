package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/gug"
	"github.com/sieve-urls/sieve/internal/netctx"
	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/registry"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

// Payload versions for the flat-JSON row types. URL classes carry their own
// codec with an upgrade chain; parsers and generators have not changed
// shape yet.
const (
	parserPayloadVersion = 1
	gugPayloadVersion    = 1
)

const (
	gugKindSingle = "single"
	gugKindNested = "nested"
)

const (
	displayKindClass = "url_class"
	displayKindGUG   = "gug"
)

const metaDefaultGUGKey = "default_gug_key"

// SaveSnapshot writes the registry's full state, replacing whatever the
// database held. One transaction: a half-written snapshot is never visible.
func SaveSnapshot(db *sql.DB, snap registry.Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"url_classes", "parsers", "gugs", "class_parser_links", "display_flags", "custom_headers", "registry_meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("save snapshot: clear %s: %w", table, err)
		}
	}

	for _, u := range snap.URLClasses {
		version, payload, err := urlclass.Encode(u)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO url_classes (key, name, version, payload) VALUES (?, ?, ?, ?)`,
			u.Key.String(), u.Name, version, string(payload),
		); err != nil {
			return fmt.Errorf("save snapshot: url class %q: %w", u.Name, err)
		}
	}

	for _, p := range snap.Parsers {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("save snapshot: parser %q: %w", p.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO parsers (key, name, version, payload) VALUES (?, ?, ?, ?)`,
			p.Key.String(), p.Name, parserPayloadVersion, string(payload),
		); err != nil {
			return fmt.Errorf("save snapshot: parser %q: %w", p.Name, err)
		}
	}

	for _, g := range snap.GUGs {
		payload, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("save snapshot: gug %q: %w", g.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO gugs (key, name, kind, version, payload) VALUES (?, ?, ?, ?, ?)`,
			g.Key.String(), g.Name, gugKindSingle, gugPayloadVersion, string(payload),
		); err != nil {
			return fmt.Errorf("save snapshot: gug %q: %w", g.Name, err)
		}
	}
	for _, n := range snap.NestedGUGs {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("save snapshot: nested gug %q: %w", n.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO gugs (key, name, kind, version, payload) VALUES (?, ?, ?, ?, ?)`,
			n.Key.String(), n.Name, gugKindNested, gugPayloadVersion, string(payload),
		); err != nil {
			return fmt.Errorf("save snapshot: nested gug %q: %w", n.Name, err)
		}
	}

	for classKey, parserKey := range snap.ClassKeyToParserKey {
		if _, err := tx.Exec(
			`INSERT INTO class_parser_links (class_key, parser_key) VALUES (?, ?)`,
			classKey.String(), parserKey.String(),
		); err != nil {
			return fmt.Errorf("save snapshot: link: %w", err)
		}
	}

	for _, key := range snap.DisplayedClassKeys {
		if _, err := tx.Exec(`INSERT INTO display_flags (kind, key) VALUES (?, ?)`, displayKindClass, key.String()); err != nil {
			return fmt.Errorf("save snapshot: display flag: %w", err)
		}
	}
	for _, key := range snap.DisplayedGUGKeys {
		if _, err := tx.Exec(`INSERT INTO display_flags (kind, key) VALUES (?, ?)`, displayKindGUG, key.String()); err != nil {
			return fmt.Errorf("save snapshot: display flag: %w", err)
		}
	}

	for ctx, entries := range snap.Headers {
		for name, entry := range entries {
			if _, err := tx.Exec(
				`INSERT INTO custom_headers (scope, scope_data, header_name, value, approval, reason) VALUES (?, ?, ?, ?, ?, ?)`,
				string(ctx.Scope), ctx.Data, name, entry.Value, string(entry.Approval), entry.Reason,
			); err != nil {
				return fmt.Errorf("save snapshot: header %q: %w", name, err)
			}
		}
	}

	if snap.DefaultGUGKey != (uuid.UUID{}) {
		if _, err := tx.Exec(
			`INSERT INTO registry_meta (key, value) VALUES (?, ?)`,
			metaDefaultGUGKey, snap.DefaultGUGKey.String(),
		); err != nil {
			return fmt.Errorf("save snapshot: meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

// LoadSnapshot reads the full registry state back, lifting url class
// payloads through the codec upgrade chain as it goes.
func LoadSnapshot(db *sql.DB) (registry.Snapshot, error) {
	var snap registry.Snapshot

	rows, err := db.Query(`SELECT version, payload FROM url_classes ORDER BY name`)
	if err != nil {
		return snap, fmt.Errorf("load snapshot: url classes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version int
		var payload string
		if err := rows.Scan(&version, &payload); err != nil {
			return snap, fmt.Errorf("load snapshot: url classes: %w", err)
		}
		u, err := urlclass.Decode(version, []byte(payload))
		if err != nil {
			return snap, fmt.Errorf("load snapshot: %w", err)
		}
		snap.URLClasses = append(snap.URLClasses, u)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("load snapshot: url classes: %w", err)
	}

	if err := loadParsers(db, &snap); err != nil {
		return snap, err
	}
	if err := loadGUGs(db, &snap); err != nil {
		return snap, err
	}
	if err := loadLinks(db, &snap); err != nil {
		return snap, err
	}
	if err := loadDisplayFlags(db, &snap); err != nil {
		return snap, err
	}
	if err := loadHeaders(db, &snap); err != nil {
		return snap, err
	}

	var defaultKey string
	err = db.QueryRow(`SELECT value FROM registry_meta WHERE key = ?`, metaDefaultGUGKey).Scan(&defaultKey)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return snap, fmt.Errorf("load snapshot: meta: %w", err)
	default:
		key, err := uuid.Parse(defaultKey)
		if err != nil {
			return snap, fmt.Errorf("load snapshot: default gug key: %w", err)
		}
		snap.DefaultGUGKey = key
	}

	return snap, nil
}

func loadParsers(db *sql.DB, snap *registry.Snapshot) error {
	rows, err := db.Query(`SELECT version, payload FROM parsers ORDER BY name`)
	if err != nil {
		return fmt.Errorf("load snapshot: parsers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version int
		var payload string
		if err := rows.Scan(&version, &payload); err != nil {
			return fmt.Errorf("load snapshot: parsers: %w", err)
		}
		if version != parserPayloadVersion {
			return fmt.Errorf("load snapshot: unsupported parser payload version %d", version)
		}
		var p pageparser.Parser
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return fmt.Errorf("load snapshot: parser payload: %w", err)
		}
		snap.Parsers = append(snap.Parsers, &p)
	}
	return rows.Err()
}

func loadGUGs(db *sql.DB, snap *registry.Snapshot) error {
	rows, err := db.Query(`SELECT kind, version, payload FROM gugs ORDER BY name`)
	if err != nil {
		return fmt.Errorf("load snapshot: gugs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, payload string
		var version int
		if err := rows.Scan(&kind, &version, &payload); err != nil {
			return fmt.Errorf("load snapshot: gugs: %w", err)
		}
		if version != gugPayloadVersion {
			return fmt.Errorf("load snapshot: unsupported gug payload version %d", version)
		}
		switch kind {
		case gugKindSingle:
			var g gug.Generator
			if err := json.Unmarshal([]byte(payload), &g); err != nil {
				return fmt.Errorf("load snapshot: gug payload: %w", err)
			}
			snap.GUGs = append(snap.GUGs, &g)
		case gugKindNested:
			var n gug.NestedGenerator
			if err := json.Unmarshal([]byte(payload), &n); err != nil {
				return fmt.Errorf("load snapshot: nested gug payload: %w", err)
			}
			snap.NestedGUGs = append(snap.NestedGUGs, &n)
		default:
			return fmt.Errorf("load snapshot: unknown gug kind %q", kind)
		}
	}
	return rows.Err()
}

func loadLinks(db *sql.DB, snap *registry.Snapshot) error {
	rows, err := db.Query(`SELECT class_key, parser_key FROM class_parser_links`)
	if err != nil {
		return fmt.Errorf("load snapshot: links: %w", err)
	}
	defer rows.Close()
	snap.ClassKeyToParserKey = map[uuid.UUID]uuid.UUID{}
	for rows.Next() {
		var classKey, parserKey string
		if err := rows.Scan(&classKey, &parserKey); err != nil {
			return fmt.Errorf("load snapshot: links: %w", err)
		}
		ck, err := uuid.Parse(classKey)
		if err != nil {
			return fmt.Errorf("load snapshot: link class key: %w", err)
		}
		pk, err := uuid.Parse(parserKey)
		if err != nil {
			return fmt.Errorf("load snapshot: link parser key: %w", err)
		}
		snap.ClassKeyToParserKey[ck] = pk
	}
	return rows.Err()
}

func loadDisplayFlags(db *sql.DB, snap *registry.Snapshot) error {
	rows, err := db.Query(`SELECT kind, key FROM display_flags`)
	if err != nil {
		return fmt.Errorf("load snapshot: display flags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, keyText string
		if err := rows.Scan(&kind, &keyText); err != nil {
			return fmt.Errorf("load snapshot: display flags: %w", err)
		}
		key, err := uuid.Parse(keyText)
		if err != nil {
			return fmt.Errorf("load snapshot: display flag key: %w", err)
		}
		switch kind {
		case displayKindClass:
			snap.DisplayedClassKeys = append(snap.DisplayedClassKeys, key)
		case displayKindGUG:
			snap.DisplayedGUGKeys = append(snap.DisplayedGUGKeys, key)
		}
	}
	return rows.Err()
}

func loadHeaders(db *sql.DB, snap *registry.Snapshot) error {
	rows, err := db.Query(`SELECT scope, scope_data, header_name, value, approval, reason FROM custom_headers`)
	if err != nil {
		return fmt.Errorf("load snapshot: headers: %w", err)
	}
	defer rows.Close()
	snap.Headers = map[netctx.Context]map[string]registry.HeaderEntry{}
	for rows.Next() {
		var scope, data, name, value, approval, reason string
		if err := rows.Scan(&scope, &data, &name, &value, &approval, &reason); err != nil {
			return fmt.Errorf("load snapshot: headers: %w", err)
		}
		ctx := netctx.Context{Scope: netctx.Scope(scope), Data: data}
		if snap.Headers[ctx] == nil {
			snap.Headers[ctx] = map[string]registry.HeaderEntry{}
		}
		snap.Headers[ctx][name] = registry.HeaderEntry{
			Value:    value,
			Approval: registry.Approval(approval),
			Reason:   reason,
		}
	}
	return rows.Err()
}

// IsEmpty reports whether the database holds no rule set yet, which is the
// cue to install defaults on first boot.
func IsEmpty(db *sql.DB) (bool, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM url_classes`).Scan(&count); err != nil {
		return false, fmt.Errorf("count url classes: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM gugs`).Scan(&count); err != nil {
		return false, fmt.Errorf("count gugs: %w", err)
	}
	return count == 0, nil
}
