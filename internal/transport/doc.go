// Package transport shapes the two HTTP requests turbodl's core ever
// issues: a HEAD probe for size and range support, and a ranged GET for a
// chunk's remaining bytes.
//
// # Usage
//
//	client := transport.NewClient(transport.DefaultOptions())
//	info, err := client.Head(ctx, url)
//	// info.Size, info.AcceptRanges
//
//	resp, err := client.GetRange(ctx, url, chunkStart, remaining)
//	defer resp.Body.Close()
//
// TLS, redirects, connection pooling and DNS are all delegated to the
// wrapped net/http.Client; this package only classifies responses and
// retries the probe on transient failures.
package transport
