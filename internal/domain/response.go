package domain

import "encoding/json"

// CallbackResponse is the body expected back from the callback endpoint.
type CallbackResponse struct {
	Code ResponseCode    `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ResponseCode holds the endpoint's code as text, whether it was sent as a
// JSON string or as a bare number.
type ResponseCode string

func (c *ResponseCode) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ResponseCode(s)
		return nil
	}
	*c = ResponseCode(data)
	return nil
}
