package store

import (
	"context"
	"encoding/json"
	"fmt"

	"autoapply-engine/internal/domain"
)

const postingsCollection = "postings"

// Postings is the discovered-jobs repository.
type Postings struct {
	kv *KV
}

func NewPostings(kv *KV) *Postings {
	return &Postings{kv: kv}
}

func (p *Postings) GetAll(ctx context.Context) (map[string]domain.Posting, error) {
	raw, err := p.kv.GetAll(ctx, postingsCollection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Posting, len(raw))
	for id, body := range raw {
		var posting domain.Posting
		if err := json.Unmarshal(body, &posting); err != nil {
			return nil, fmt.Errorf("posting %s: %w", id, err)
		}
		out[id] = posting
	}
	return out, nil
}

// ExistingIDs returns the id set without decoding document bodies.
func (p *Postings) ExistingIDs(ctx context.Context) (map[string]bool, error) {
	ids, err := p.kv.IDs(ctx, postingsCollection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (p *Postings) PutAll(ctx context.Context, postings []domain.Posting) error {
	docs := make(map[string]json.RawMessage, len(postings))
	for _, posting := range postings {
		b, err := json.Marshal(posting)
		if err != nil {
			return err
		}
		docs[posting.ID] = b
	}
	return p.kv.PutAll(ctx, postingsCollection, docs)
}

func (p *Postings) ReplaceAll(ctx context.Context, postings map[string]domain.Posting) error {
	docs := make(map[string]json.RawMessage, len(postings))
	for id, posting := range postings {
		b, err := json.Marshal(posting)
		if err != nil {
			return err
		}
		docs[id] = b
	}
	return p.kv.ReplaceAll(ctx, postingsCollection, docs)
}

func (p *Postings) Delete(ctx context.Context, id string) error {
	return p.kv.Delete(ctx, postingsCollection, id)
}
