package ingest

import "errors"

var errEmptyTimestamp = errors.New("ingest: social_create_time is empty")
