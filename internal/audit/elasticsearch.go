package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchSink indexes records for search. Document ids are the
// invocation id plus phase, so a retried write overwrites instead of
// duplicating.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

type ElasticsearchOptions struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

func NewElasticsearchSink(opts ElasticsearchOptions) (*ElasticsearchSink, error) {
	cfg := elasticsearch.Config{Addresses: opts.Addresses}
	if opts.Username != "" {
		cfg.Username = opts.Username
		cfg.Password = opts.Password
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return NewElasticsearchSinkWithClient(client, opts.Index), nil
}

func NewElasticsearchSinkWithClient(client *elasticsearch.Client, index string) *ElasticsearchSink {
	if index == "" {
		index = "querygate-audit"
	}
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Write(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("elasticsearch marshal: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(rec.InvocationID+"-"+string(rec.Phase)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("elasticsearch index seq %d: %s: %s", rec.Seq, res.Status(), msg)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func (s *ElasticsearchSink) Close() error { return nil }
