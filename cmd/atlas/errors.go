// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/pdiddy/atlas/internal/ingest"
	"github.com/pdiddy/atlas/internal/model"
)

// explain prefixes err with a hint about what the user can do about it.
func explain(err error) string {
	var ie *ingest.IngestionError
	switch {
	case errors.Is(err, model.ErrMissingCredential):
		return fmt.Sprintf("%v (put a key in .secrets/openrouter-api-key or set OPENROUTER_KEY)", err)
	case model.IsCredentialProblem(err):
		return fmt.Sprintf("the provider rejected the API key: %v", err)
	case model.IsTransient(err):
		return fmt.Sprintf("temporary network or provider problem, try again later: %v", err)
	case errors.As(err, &ie):
		return fmt.Sprintf("could not read the document: %v", err)
	}
	return err.Error()
}
