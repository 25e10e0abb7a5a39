// Package migrations 內嵌 goose SQL 遷移檔
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
