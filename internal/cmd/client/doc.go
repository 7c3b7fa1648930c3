// Package client provides the `pricerelay` client commands.
//
// The commands talk to a running relay over HTTP, or publish straight to the
// message bus for local testing.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads PRICERELAY_URL and
// defaults to http://127.0.0.1:8080. publish uses the same bus settings as
// the server (config file and PRICERELAY_BUS_* variables).
//
// Usage
//
//	pricerelay snapshot
//	pricerelay tail --limit 5
//	pricerelay tail --filter 'json.symbol == "BTC"'
//	pricerelay publish --data '{"price":100,"data":{"symbol":"BTC"}}'
//	echo '{"price":101}' | pricerelay publish
package client
