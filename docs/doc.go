// Package docs provides generated OpenAPI documentation.
//
// Scriptorium API
//
//	@title			Scriptorium API
//	@version		1.0
//	@description	Coordination API for volunteer book transcription: books, pages, claims and points.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/pagewright/scriptorium
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/scriptorium/serve.go -o ./swagger --parseDependency --parseInternal
