// Package proxy implements the per-connection core of the Courier HTTP/1.0
// forwarding proxy.
//
// A client sends one request with an absolute-form target. The proxy reads the
// header block, parses the request line, resolves the target host, forwards a
// filtered GET to the origin and relays the origin's bytes back unchanged.
// There is no keep-alive: every connection carries exactly one request.
//
// # State Machine
//
// Handler.ServeConn drives each connection through:
//
//  1. await_request  - read until "\r\n\r\n" or "\n\n", bounded by the inbound buffer
//  2. parse          - split the request line; only GET is accepted
//  3. resolve        - split scheme://host[:port]/path and look up the host
//  4. connect        - try each resolved endpoint in order
//  5. send_request   - write the rebuilt HTTP/1.0 request
//  6. relay_response - copy origin bytes to the client until EOF
//
// Failures in steps 1 through 4 move to error_response, which writes
//
//	HTTP/1.0 <code> <reason>\r\n\r\n<message>\r\n
//
// and closes. A client that sends nothing or times out is closed silently.
// Failures while sending or relaying close both sockets without a response.
//
// # Error Mapping
//
//	400 BAD REQUEST          Invalid request!           malformed request line or target
//	400 BAD REQUEST          Request too large!         header block exceeds the buffer
//	501 NOT IMPLEMENTED      Not a GET request          any other method
//	503 SERVICE UNAVAILABLE  Could not resolve host!    lookup failed or returned nothing
//	503 SERVICE UNAVAILABLE  Could not connect to host! every endpoint refused
//
// # Header Forwarding
//
// Only Authorization, From, If-Modified-Since, Referer and User-Agent are
// forwarded, compared case-sensitively. Accepted lines are copied verbatim in
// their original order.
//
// # Usage
//
//	h := proxy.NewHandler(proxy.Options{
//	    Resolver:          &proxy.SystemResolver{},
//	    Connector:         proxy.NewConnector(10 * time.Second),
//	    ClientIdleTimeout: 5 * time.Second,
//	    Logger:            logger,
//	})
//
//	for {
//	    conn, err := ln.Accept()
//	    if err != nil {
//	        return err
//	    }
//	    go func() {
//	        outcome := h.ServeConn(ctx, conn)
//	        logger.Info("connection closed", "result", outcome.Result)
//	    }()
//	}
//
// Connection accounting, metrics and access logging are layered on top by the
// server package using the returned Outcome.
package proxy
