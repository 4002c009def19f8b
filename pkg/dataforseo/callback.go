package dataforseo

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// CallbackPayload is the body the provider pushes to a postback URL when a
// task finishes. It carries the same envelope as a fetch, plus the tag the
// task was submitted with.
type CallbackPayload struct {
	RemoteID string
	Tag      string
	Result   TaskResult
}

// ParseCallback decodes a postback body. An envelope with no task entries is
// an error; the caller has nothing to resolve against.
func ParseCallback(body []byte) (*CallbackPayload, error) {
	var env struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
		Tasks         []struct {
			ID            string          `json:"id"`
			StatusCode    int             `json:"status_code"`
			StatusMessage string          `json:"status_message"`
			ResultCount   int             `json:"result_count"`
			Result        json.RawMessage `json:"result"`
			Data          struct {
				Tag string `json:"tag"`
			} `json:"data"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "dataforseo: unmarshal callback")
	}
	if len(env.Tasks) == 0 {
		return nil, eris.New("dataforseo: callback carries no task entry")
	}
	t := env.Tasks[0]
	return &CallbackPayload{
		RemoteID: t.ID,
		Tag:      t.Data.Tag,
		Result: TaskResult{
			RemoteID:      t.ID,
			StatusCode:    t.StatusCode,
			StatusMessage: t.StatusMessage,
			ResultCount:   t.ResultCount,
			Raw:           t.Result,
		},
	}, nil
}
