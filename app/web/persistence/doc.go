// Package persistence provides storage for the roster change history shown in the web UI.
// Currently it supports SQLite with WAL mode. The roster itself lives in the json file,
// history is an optional journal and never a source of truth.
package persistence
