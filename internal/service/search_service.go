package service

import (
	"context"

	"cloudshift-go/internal/config"
	"cloudshift-go/internal/model"
	"cloudshift-go/pkg/es"
)

const defaultSearchSize = 20

// SearchService 提供对用户自己历史消息的全文检索。
type SearchService interface {
	SearchMessages(ctx context.Context, user *model.User, query string, size int) ([]es.MessageDoc, error)
}

type searchService struct {
	esCfg config.ElasticsearchConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(esCfg config.ElasticsearchConfig) SearchService {
	return &searchService{esCfg: esCfg}
}

// SearchMessages 在当前用户的消息范围内按内容检索。
func (s *searchService) SearchMessages(ctx context.Context, user *model.User, query string, size int) ([]es.MessageDoc, error) {
	if size <= 0 {
		size = defaultSearchSize
	}
	return es.SearchMessages(ctx, s.esCfg.IndexName, user.StoreID(), query, size)
}
