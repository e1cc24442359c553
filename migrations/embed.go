// Package migrations встраивает SQL-миграции схемы БД в бинарники сервиса.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
