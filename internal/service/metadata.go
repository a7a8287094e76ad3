package service

import (
	"github.com/haierkeys/fast-content-service/internal/domain"
)

// ExtractMetadata captures the non-content fields of an entity for a history record.
// Tag and relationship ids are stored as they are at this version and are never re-resolved.
// ExtractMetadata 提取实体的非内容字段；标签与关联 ID 按当时状态保存，不再回查
func ExtractMetadata(c *domain.Content) domain.Metadata {
	if c == nil {
		return domain.Metadata{}
	}

	tags := make([]map[string]any, 0, len(c.Tags))
	for _, t := range c.Tags {
		tags = append(tags, map[string]any{"id": t.ID, "name": t.Name})
	}

	relationships := make([]map[string]any, 0, len(c.Relationships))
	for _, r := range c.Relationships {
		relationships = append(relationships, map[string]any{
			"target_type":       string(r.TargetType),
			"target_id":         r.TargetID,
			"relationship_type": r.RelationshipType,
			"description":       r.Description,
		})
	}

	m := domain.Metadata{
		"title":         c.Title,
		"description":   c.Description,
		"tags":          tags,
		"relationships": relationships,
	}

	switch c.Type {
	case domain.EntityTypeBookmark:
		m["url"] = c.URL
	case domain.EntityTypePrompt:
		args := make([]map[string]any, 0, len(c.Arguments))
		for _, a := range c.Arguments {
			args = append(args, map[string]any{
				"name":        a.Name,
				"description": a.Description,
				"required":    a.Required,
			})
		}
		m["name"] = c.Name
		m["arguments"] = args
	}
	return m
}
