package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"

	"github.com/mttchpmn/flux/internal/node"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeForm = "application/x-www-form-urlencoded"
)

var (
	errMalformedBody = errors.New("api: malformed request body")
	errBodyNotObject = errors.New("api: request body must be a JSON object")
)

// wire matches JSON.stringify: compact output with <, > and & left as is.
var wire = sonic.ConfigDefault

// encodeBody encodes v for the response body. With stringify set the
// encoded document is encoded a second time as a JSON string literal.
func encodeBody(v any, stringify bool) ([]byte, error) {
	data, err := wire.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	if !stringify {
		return data, nil
	}

	quoted, err := wire.Marshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("stringifying response: %w", err)
	}
	return quoted, nil
}

// decodeFields reads the request body into top-level fields according to
// its content type. Unsupported content types yield no fields.
func decodeFields(r *http.Request) (node.Fields, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mediaType != contentTypeJSON && mediaType != contentTypeForm) {
		return node.Fields{}, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	if mediaType == contentTypeForm {
		return decodeFormFields(body)
	}
	return decodeJSONFields(body)
}

// decodeJSONFields splits a JSON object into its members, keeping each
// value's original JSON text. When a key repeats the last value wins.
func decodeJSONFields(body []byte) (node.Fields, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return node.Fields{}, nil
	}
	if !sonic.Valid(body) {
		return nil, errMalformedBody
	}

	root, err := sonic.Get(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	if root.TypeSafe() != ast.V_OBJECT {
		return nil, errBodyNotObject
	}

	it, err := root.Properties()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedBody, err)
	}

	fields := node.Fields{}
	var pair ast.Pair
	for it.Next(&pair) {
		raw, err := pair.Value.Raw()
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", errMalformedBody, pair.Key, err)
		}
		v, err := node.Raw([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", errMalformedBody, pair.Key, err)
		}
		fields[pair.Key] = v
	}
	return fields, nil
}

// decodeFormFields maps form values to string fields. A key given more than
// once becomes an array of strings.
func decodeFormFields(body []byte) (node.Fields, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedBody, err)
	}

	fields := make(node.Fields, len(values))
	for key, vs := range values {
		if len(vs) == 1 {
			fields[key] = node.String(vs[0])
			continue
		}
		data, err := wire.Marshal(vs)
		if err != nil {
			return nil, fmt.Errorf("encoding form field %q: %w", key, err)
		}
		fields[key] = node.Value(data)
	}
	return fields, nil
}
