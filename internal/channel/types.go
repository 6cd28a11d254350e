package channel

import (
	"encoding/json"
	"net/http"
)

// ResultKind enumerates the outcomes of Channel.Receive.
type ResultKind int

const (
	// ResultRespond ends the request with a prepared response.
	ResultRespond ResultKind = iota + 1
	// ResultDeliver hands an inbound message to the handler.
	ResultDeliver
	// ResultDefer asks the dispatcher to let the channel run the exchange itself.
	ResultDefer
)

func (k ResultKind) String() string {
	switch k {
	case ResultRespond:
		return "respond"
	case ResultDeliver:
		return "deliver"
	case ResultDefer:
		return "defer"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of Channel.Receive. The zero value behaves like an empty
// acknowledgement.
type Result struct {
	kind     ResultKind
	response *Response
	inbound  Inbound
}

// Respond builds a terminal result.
func Respond(resp *Response) Result {
	if resp == nil {
		resp = Empty()
	}
	return Result{kind: ResultRespond, response: resp}
}

// Deliver builds a result carrying an inbound message.
func Deliver(in Inbound) Result {
	return Result{kind: ResultDeliver, inbound: in}
}

// Defer builds a result that hands the request to the channel's Exchanger.
func Defer() Result {
	return Result{kind: ResultDefer}
}

func (r Result) Kind() ResultKind {
	if r.kind == 0 {
		return ResultRespond
	}
	return r.kind
}

// Response returns the terminal response; an empty acknowledgement for non-respond results.
func (r Result) Response() *Response {
	if r.response == nil {
		return Empty()
	}
	return r.response
}

func (r Result) Inbound() Inbound {
	return r.inbound
}

// Response is a transport-neutral HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Empty is the benign acknowledgement: 200 with no body.
func Empty() *Response {
	return &Response{Status: http.StatusOK, Header: http.Header{}}
}

// Text builds a plain-text response.
func Text(status int, body string) *Response {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &Response{Status: status, Header: h, Body: []byte(body)}
}

// JSON builds a JSON response. An unencodable value yields a 500.
func JSON(status int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return Text(http.StatusInternalServerError, "encode response: "+err.Error())
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &Response{Status: status, Header: h, Body: body}
}

// WithHeader adds every value of h to the response headers and returns r.
func (r *Response) WithHeader(h http.Header) *Response {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	for key, values := range h {
		r.Header[key] = append([]string(nil), values...)
	}
	return r
}

// Write writes the response to w.
func (r *Response) Write(w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}
