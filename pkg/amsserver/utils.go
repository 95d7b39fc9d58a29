package amsserver

import (
	"encoding/json"
	"net/http"
)

func panicIfError(err error) {
	if err != nil {
		panic(err)
	}
}

func outJson(w http.ResponseWriter, out any) error {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
