package main

import "github.com/mern-testing/server/internal/cli"

//	@title			mern-testing server
//	@description	API server for the mern-testing application.
//	@description
//	@description	## Common Error Responses
//	@description	All endpoints may return:
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error
//	@description
//	@description	Error bodies use the same JSON shape (httpMethod, requestUri, statusCode, statusCodeText, statusCodeMessage, requestId, errorDateTime).
//	@description
//	@description	## Request Limits
//	@description	- **Rate limiting**: Configurable requests per second (RATE_LIMIT_RPS) - default 100 rps (set to 0 to disable)
//	@description	- **Request size limits**: Configurable (MAX_REQUEST_BODY_BYTES) - default 1MB, advertised in the X-Max-Request-Size response header
//	@license.name	MIT

//	@servers.url			http://localhost:5000
//	@servers.description	Development server

//	@accept		json
//	@produce	json

//	@tag.name			Common
//	@tag.description	Server API endpoints (health, readiness, version)

func main() {
	cli.Execute()
}
