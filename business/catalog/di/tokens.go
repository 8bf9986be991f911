// Package di contains dependency injection tokens for the catalog context.
package di

import (
	"github.com/fd1az/etfkit/business/catalog/app"
	"github.com/fd1az/etfkit/internal/di"
)

// Public service tokens - exposed to other modules
var (
	CatalogService = di.NewToken[*app.CatalogService]("catalog.CatalogService")
)

// Private dependency tokens - internal to catalog module
var (
	Backend = di.NewToken[app.Backend]("catalog:backend")
)

func GetCatalogService(c di.ServiceRegistry) *app.CatalogService {
	return di.GetToken(c, CatalogService)
}

func GetBackend(c di.ServiceRegistry) app.Backend {
	return di.GetToken(c, Backend)
}
