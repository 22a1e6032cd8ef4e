package requestlog

import (
	"bytes"
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticIndexer writes documents into one Elasticsearch index.
type ElasticIndexer struct {
	es    *elasticsearch.Client
	index string
}

func NewElasticIndexer(nodes []string, index string) (*ElasticIndexer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: nodes})
	if err != nil {
		return nil, fmt.Errorf("error creating the client: %w", err)
	}
	return &ElasticIndexer{es: es, index: index}, nil
}

func (i *ElasticIndexer) Index(ctx context.Context, id string, body []byte) error {
	res, err := i.es.Index(
		i.index,
		bytes.NewReader(body),
		i.es.Index.WithDocumentID(id),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index %s document %s: %s", i.index, id, res.Status())
	}
	return nil
}
