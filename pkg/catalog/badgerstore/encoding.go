package badgerstore

import (
	"encoding/json"
	"fmt"

	"github.com/docspp/docspp/pkg/catalog"
)

func encodeFile(e *catalog.FileEntry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode file entry: %w", err)
	}
	return b, nil
}

func decodeFile(b []byte) (*catalog.FileEntry, error) {
	var e catalog.FileEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode file entry: %w", err)
	}
	return &e, nil
}

func encodeRequest(r *catalog.AccessRequest) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode access request: %w", err)
	}
	return b, nil
}

func decodeRequest(b []byte) (*catalog.AccessRequest, error) {
	var r catalog.AccessRequest
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode access request: %w", err)
	}
	return &r, nil
}
