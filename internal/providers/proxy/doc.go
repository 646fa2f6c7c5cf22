/*
Package proxy runs allow-listed network commands outside the sandboxed shell.

# Overview

A command line is classified once by Classify into a closed Kind:
KindNative lines belong to the shell, KindCurl and KindFetch lines become a
Command that an Executor runs over HTTP instead.

# Executors

  - Client: calls a remote GET /api/proxy?command=<json> endpoint
  - LocalExecutor: runs the request in-process through a Runner

Runner is also what serves /api/proxy. It maps curl/fetch arguments onto an
HTTP request, decodes JSON bodies, and for fetch reduces HTML to text.

# Wire format

	GET /api/proxy?command={"command":"curl","args":["-s","https://example.com"]}

	{"status":200,"statusText":"OK","headers":{...},"data":...}
	{"error":"Unsupported command: rm"}            (400)

All outbound calls go through a rate limiter and a circuit breaker.
*/
package proxy
