// Package enums provides type-safe enumeration types for the web interface.
//
// The enum types are defined as unexported integer types in this file, and the go:generate
// directives invoke github.com/go-pkgz/enum to create the exported types in *_enum.go files,
// with String, Parse*, MarshalText/UnmarshalText and Scan/Value (sql) support.
//
//	action := enums.ActionUpdated
//	fmt.Println(action.String()) // "updated"
//	parsed, err := enums.ParseTheme("dark")
//
// To regenerate the enum types after modifications:
//
//	go generate ./app/web/enums
package enums

//go:generate go run github.com/go-pkgz/enum@latest -type action -lower
//go:generate go run github.com/go-pkgz/enum@latest -type theme -lower

// action is the kind of change recorded in roster history.
// Use the exported Action type and its constants in actual code.
type action int

const (
	actionAdded action = iota
	actionUpdated
)

// theme represents UI themes.
// Use the exported Theme type and its constants in actual code.
type theme int

const (
	themeLight theme = iota
	themeDark
	themeAuto
)
