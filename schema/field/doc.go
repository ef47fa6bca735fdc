// Package field provides fluent builders for declaring the fields of a DQL
// component.
//
// The builder name is the name used in DQL statements; the storage column
// defaults to it and can be overridden:
//
//	field.ID()                                   // id, primary key
//	field.String("name").StorageKey("user_name") // DQL u.name, SQL u.user_name
//	field.Enum("status").Values("active", "banned")
//
// Enum fields are stored as the index of their value, so a condition such as
// u.status = 'banned' compiles to u.status = 1.
package field
