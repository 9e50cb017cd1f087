package pool

import "encoding/json"

// wireRequest is the JSON line sent to a Solver Worker's stdin (spec §6.1).
type wireRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	LP   string `json:"lp"`
}

type wireColumn struct {
	Primal float64 `json:"Primal"`
}

// wireResult is the JSON line a worker writes to stdout on a successful
// solve; wireError is written instead on solver failure. Both share a
// "type" discriminator, so decoding happens in two passes.
type wireResult struct {
	Type           string                `json:"type"`
	ID             string                `json:"id"`
	Status         string                `json:"status"`
	Columns        map[string]wireColumn `json:"columns"`
	ObjectiveValue float64               `json:"objectiveValue"`
}

type wireError struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// decodeResponse sniffs a response line's "type" field and decodes it into
// the matching struct.
func decodeResponse(line []byte) (result *wireResult, errResp *wireError, err error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err = json.Unmarshal(line, &probe); err != nil {
		return nil, nil, err
	}
	switch probe.Type {
	case "result":
		var r wireResult
		if err = json.Unmarshal(line, &r); err != nil {
			return nil, nil, err
		}
		return &r, nil, nil
	case "error":
		var e wireError
		if err = json.Unmarshal(line, &e); err != nil {
			return nil, nil, err
		}
		return nil, &e, nil
	default:
		return nil, &wireError{Message: "unrecognized response type: " + probe.Type}, nil
	}
}
