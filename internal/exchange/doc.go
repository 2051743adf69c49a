// Package exchange implements the per-venue connectors.
//
// A Connector wraps everything exchange-specific (endpoints, signing,
// payload shapes) behind two operations: Initialize and FetchSnapshot.
// The rest of the system only ever sees model.ExchangeSnapshot.
//
// Supported (exchange, account_type) pairs:
//   - ("binance", "futures")     USDⓈ-M futures via the go-binance SDK
//   - ("aster", "futures")       Binance-compatible REST with HMAC signing
//   - ("hyperliquid", "perp")    public info API, address-identified
//
// Anything else is rejected by New with ErrUnsupported.
package exchange
