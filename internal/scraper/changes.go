package scraper

import "github.com/solosuccess/competitor-intel/internal/models"

// SetDiff lists entries that appeared or disappeared between two snapshots
type SetDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Changed reports whether anything was added or removed
func (d SetDiff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// ChangeSet describes how a page differs from its previous snapshot
type ChangeSet struct {
	Title       bool    `json:"title"`
	Description bool    `json:"description"`
	Content     bool    `json:"content"`
	Links       SetDiff `json:"links"`
	Images      SetDiff `json:"images"`
}

// HasChanges reports whether any dimension differs
func (c ChangeSet) HasChanges() bool {
	return c.Title || c.Description || c.Content || c.Links.Changed() || c.Images.Changed()
}

// DetectChanges compares a new snapshot against the previous one
func DetectChanges(previous, current *models.ScrapedContent) ChangeSet {
	return ChangeSet{
		Title:       previous.Title != current.Title,
		Description: previous.Description != current.Description,
		Content:     previous.Metadata.ContentHash != current.Metadata.ContentHash,
		Links:       diffSets(previous.Links, current.Links),
		Images:      diffSets(previous.Images, current.Images),
	}
}

func diffSets(previous, current []string) SetDiff {
	old := make(map[string]struct{}, len(previous))
	for _, v := range previous {
		old[v] = struct{}{}
	}
	cur := make(map[string]struct{}, len(current))
	for _, v := range current {
		cur[v] = struct{}{}
	}

	var diff SetDiff
	for _, v := range current {
		if _, ok := old[v]; !ok {
			diff.Added = append(diff.Added, v)
		}
	}
	for _, v := range previous {
		if _, ok := cur[v]; !ok {
			diff.Removed = append(diff.Removed, v)
		}
	}
	return diff
}
