package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestAnyMessageClassification(t *testing.T) {
	cases := []struct {
		name string
		body string
		typ  string
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, "request"},
		{"string id request", `{"jsonrpc":"2.0","id":"abc","method":"ping"}`, "request"},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, "notification"},
		{"result response", `{"jsonrpc":"2.0","id":1,"result":{}}`, "response"},
		{"error response", `{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"bad"}}`, "response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m AnyMessage
			if err := json.Unmarshal([]byte(tc.body), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := m.Type(); got != tc.typ {
				t.Fatalf("type = %q, want %q", got, tc.typ)
			}
		})
	}
}

func TestAnyMessageStructuralRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`},
		{"missing version", `{"id":1,"method":"ping"}`},
		{"request with result", `{"jsonrpc":"2.0","id":1,"method":"ping","result":{}}`},
		{"response with both", `{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"x"}}`},
		{"response with neither", `{"jsonrpc":"2.0","id":1}`},
		{"bool id", `{"jsonrpc":"2.0","id":true,"method":"ping"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m AnyMessage
			if err := json.Unmarshal([]byte(tc.body), &m); err == nil {
				t.Fatalf("accepted %s", tc.body)
			}
		})
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`1`, "1"},
		{`"abc"`, "abc"},
		{`1.5`, "1.5"},
	}
	for _, tc := range cases {
		var id RequestID
		if err := json.Unmarshal([]byte(tc.raw), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if id.String() != tc.want {
			t.Fatalf("String() = %q, want %q", id.String(), tc.want)
		}
		b, err := json.Marshal(&id)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(b) != tc.raw {
			t.Fatalf("round trip %s -> %s", tc.raw, b)
		}
	}
}

func TestResponseIDPreserved(t *testing.T) {
	var m AnyMessage
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":"req-7","method":"ping"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	req := m.AsRequest()
	if req == nil || req.IsNotification() {
		t.Fatal("request not classified")
	}

	res, err := NewResultResponse(req.ID, map[string]string{"ok": "yes"})
	if err != nil {
		t.Fatalf("result response: %v", err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var echo struct {
		JSONRPC string `json:"jsonrpc"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(b, &echo); err != nil {
		t.Fatalf("unmarshal echo: %v", err)
	}
	if echo.ID != "req-7" || echo.JSONRPC != ProtocolVersion {
		t.Fatalf("echo = %+v", echo)
	}
}

func TestErrorResponseShape(t *testing.T) {
	res := NewErrorResponse(NewRequestID(3), ErrorCodeMethodNotFound, "nope")
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var echo struct {
		Error *Error `json:"error"`
		ID    int    `json:"id"`
	}
	if err := json.Unmarshal(b, &echo); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if echo.Error == nil || echo.Error.Code != ErrorCodeMethodNotFound || echo.ID != 3 {
		t.Fatalf("echo = %+v", echo)
	}
}
