// Package mcping queries Java edition game servers for their public status
// using the handshake + status request exchange of the server list protocol.
//
// A query is a Conn walking through Connect and Ping:
//
//	addr, _ := mcping.ParseAddress("play.example.com")
//	c := mcping.New(addr, mcping.WithTimeout(3*time.Second))
//	defer c.Close()
//
//	if err := c.Connect(ctx); err != nil {
//		return err
//	}
//	status, err := c.Ping(ctx)
//
// Query does the same in one call. The lower level pieces (VarInt and frame
// codecs, packet builders, the status decoder) are exported for tools that
// bring their own transport.
package mcping
