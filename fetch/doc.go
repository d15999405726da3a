/*
Package fetch retrieves remote JSON documents over HTTP and classifies the
outcome.

Every failure is one of three types, which callers can tell apart with
errors.As:

	doc, err := fetch.FetchJSON(ctx, fetcher, uri, fetch.JSON[Document]())
	var remoteErr *fetch.RemoteFetchError
	switch {
	case errors.As(err, &remoteErr):
	    log.Printf("provider answered %d for %s", remoteErr.StatusCode, remoteErr.URI)
	case errors.As(err, new(*fetch.TransportError)):
	    // network, DNS or timeout
	case errors.As(err, new(*fetch.DecodeError)):
	    // 200 OK with a body that is not the expected document
	}

The package performs no retries and no caching; see the oidcmetadata
package for the cache built on top of it.
*/
package fetch
