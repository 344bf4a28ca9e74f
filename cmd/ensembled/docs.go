package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           ensembled API
// @version         1.0
// @description     HTTP API for ensemble model serving and artifact cache inspection.
//
// @contact.name   ensembled maintainers
// @contact.url    https://github.com/your-org/ensembled
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
