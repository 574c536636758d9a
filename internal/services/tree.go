package services

import (
	"fmt"
	"sort"

	"github.com/doc-capture/internal/db/models"
)

type FolderNode struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Contents    []ContentNode `json:"contents"`
	Children    []*FolderNode `json:"children"`
}

type ContentNode struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	QRCode      string `json:"qrCode"`
}

func contentNode(c *models.ContentType) ContentNode {
	return ContentNode{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Required:    c.Required,
		QRCode:      c.IdentityPayload,
	}
}

// assembleTree turns the flat folder rows of one plan into a forest.
// Roots and siblings come out by ascending id, contents by ascending id.
// Folders hanging off a parent that is not part of the plan are dropped;
// a parent chain that loops is an error.
func assembleTree(folders []models.Folder, links []models.FolderContent, contents map[uint]*models.ContentType) ([]*FolderNode, error) {
	arena := make(map[uint]*FolderNode, len(folders))
	parentOf := make(map[uint]uint, len(folders))
	childIDs := make(map[uint][]uint)
	contentIDs := make(map[uint][]uint)
	var rootIDs []uint

	for i := range folders {
		f := &folders[i]
		arena[f.ID] = &FolderNode{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			Contents:    []ContentNode{},
			Children:    []*FolderNode{},
		}
	}
	for i := range folders {
		f := &folders[i]
		if f.ParentFolderID == nil {
			rootIDs = append(rootIDs, f.ID)
			continue
		}
		parentOf[f.ID] = *f.ParentFolderID
		if _, ok := arena[*f.ParentFolderID]; ok {
			childIDs[*f.ParentFolderID] = append(childIDs[*f.ParentFolderID], f.ID)
		}
	}
	for _, l := range links {
		if _, ok := arena[l.FolderID]; !ok {
			continue
		}
		if _, ok := contents[l.ContentTypeID]; !ok {
			continue
		}
		contentIDs[l.FolderID] = append(contentIDs[l.FolderID], l.ContentTypeID)
	}

	ascending := func(ids []uint) {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	ascending(rootIDs)

	visited := make(map[uint]bool, len(arena))
	stack := make([]uint, 0, len(rootIDs))
	for i := len(rootIDs) - 1; i >= 0; i-- {
		stack = append(stack, rootIDs[i])
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			return nil, fmt.Errorf("%w: folder %d reached twice", ErrInvalidArgument, id)
		}
		visited[id] = true
		node := arena[id]

		cids := contentIDs[id]
		ascending(cids)
		for _, cid := range cids {
			node.Contents = append(node.Contents, contentNode(contents[cid]))
		}

		kids := childIDs[id]
		ascending(kids)
		for _, kid := range kids {
			node.Children = append(node.Children, arena[kid])
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}

	for id := range arena {
		if visited[id] {
			continue
		}
		if loops(id, parentOf, arena) {
			return nil, fmt.Errorf("%w: folder %d is part of a parent cycle", ErrInvalidArgument, id)
		}
	}

	roots := make([]*FolderNode, 0, len(rootIDs))
	for _, id := range rootIDs {
		roots = append(roots, arena[id])
	}
	return roots, nil
}

// loops follows parent links from id and reports whether the chain comes back
// on itself before leaving the arena.
func loops(id uint, parentOf map[uint]uint, arena map[uint]*FolderNode) bool {
	seen := make(map[uint]bool)
	current := id
	for {
		if seen[current] {
			return true
		}
		seen[current] = true
		parent, ok := parentOf[current]
		if !ok {
			return false
		}
		if _, inPlan := arena[parent]; !inPlan {
			return false
		}
		current = parent
	}
}
