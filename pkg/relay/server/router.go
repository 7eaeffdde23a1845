package server

import (
	"strconv"

	"github.com/watt-toolkit/relay/pkg/relay/http1"
)

// HelloBody is the payload of the built-in GET / route.
const HelloBody = "Hello World!"

// HandlerFunc fills res for req. Status, body and any extra headers are the
// handler's business; Router adds the framing headers afterwards.
type HandlerFunc func(req *http1.Request, res *http1.Response)

// Router is the default Processor: exact path match per method.
//
// Policy, in order: an unknown protocol version is answered 400, a method
// other than GET or HEAD 501, an unmatched path 404. A HEAD without its own
// route falls back to the GET route with the body dropped and Content-Length
// kept.
type Router struct {
	routes     map[http1.Method]map[string]HandlerFunc
	serverName string
}

// NewRouter returns a Router with the GET / route registered.
func NewRouter(serverName string) *Router {
	r := &Router{
		routes:     make(map[http1.Method]map[string]HandlerFunc),
		serverName: serverName,
	}
	r.GET("/", func(_ *http1.Request, res *http1.Response) {
		Respond(res, http1.StatusOK, "text/plain", []byte(HelloBody))
	})
	return r
}

// Handle registers h for method and path, replacing any previous handler.
// Only GET and HEAD can be routed.
func (r *Router) Handle(method http1.Method, path string, h HandlerFunc) {
	if method != http1.MethodGET && method != http1.MethodHEAD {
		panic("server: cannot route method " + method.String())
	}
	byPath, ok := r.routes[method]
	if !ok {
		byPath = make(map[string]HandlerFunc)
		r.routes[method] = byPath
	}
	byPath[path] = h
}

func (r *Router) GET(path string, h HandlerFunc) {
	r.Handle(http1.MethodGET, path, h)
}

func (r *Router) HEAD(path string, h HandlerFunc) {
	r.Handle(http1.MethodHEAD, path, h)
}

// Process implements Processor.
func (r *Router) Process(req *http1.Request, res *http1.Response) {
	res.Schema = req.Schema
	if res.Schema == http1.SchemaUnknown {
		res.Schema = http1.SchemaHTTP11
	}

	head := req.Method == http1.MethodHEAD
	switch h, status := r.lookup(req); status {
	case http1.StatusOK:
		h(req, res)
		if res.Status == http1.StatusUnknown {
			res.Status = http1.StatusOK
		}
	default:
		res.Status = status
		res.Body.Clear()
	}

	res.Headers.Set("Content-Length", strconv.Itoa(res.Body.Len()))
	if head {
		res.Body.Clear()
	}
	if _, ok := res.Headers.Lookup("Content-Type"); !ok {
		res.Headers.Set("Content-Type", "text/plain")
	}
	if r.serverName != "" {
		res.Headers.Set("Server", r.serverName)
	}
	if req.KeepAlive() {
		res.Headers.Set("Connection", http1.KeepAliveToken)
	} else {
		res.Headers.Set("Connection", http1.CloseToken)
	}
}

func (r *Router) lookup(req *http1.Request) (HandlerFunc, http1.Status) {
	if req.Schema == http1.SchemaUnknown {
		return nil, http1.StatusBadRequest
	}

	if req.Method != http1.MethodGET && req.Method != http1.MethodHEAD {
		return nil, http1.StatusNotImplemented
	}

	h, ok := r.routes[req.Method][req.URL.Path]
	if !ok && req.Method == http1.MethodHEAD {
		h, ok = r.routes[http1.MethodGET][req.URL.Path]
	}
	if !ok {
		return nil, http1.StatusNotFound
	}
	return h, http1.StatusOK
}

// Respond sets status, Content-Type and body on res. A body that does not
// fit the response buffer turns the reply into an empty 500.
func Respond(res *http1.Response, status http1.Status, contentType string, body []byte) {
	if err := res.Body.Load(body); err != nil {
		res.Status = http1.StatusInternalServerError
		res.Headers.Set("Content-Type", "text/plain")
		return
	}
	res.Status = status
	res.Headers.Set("Content-Type", contentType)
}
