package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/bitfantasy/nimo-hr/internal/hr/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddChat posts a comment on a timesheet, optionally as a reply.
func (s *TimesheetService) AddChat(ctx context.Context, actor Actor, timesheetID string, parentID *string, message string) (*entity.TimesheetChat, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrValidation("message is required")
	}
	ts, err := s.repos.Timesheet.FindByID(ctx, timesheetID)
	if err != nil {
		return nil, notFoundOr(err, "timesheet")
	}
	if !canViewTimesheet(actor, ts) {
		return nil, ErrAuthorization("timesheet is not visible to you")
	}
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		_, err := s.repos.Timesheet.FindChat(ctx, ts.ID, *parentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrValidation("parent comment does not belong to this timesheet")
		}
		if err != nil {
			return nil, fmt.Errorf("load parent comment: %w", err)
		}
	}

	chat := &entity.TimesheetChat{
		ID:          uuid.New().String(),
		TimesheetID: ts.ID,
		ParentID:    parentID,
		AuthorID:    actor.EmployeeID,
		Message:     message,
		CreatedAt:   s.now(),
	}
	if err := s.repos.Timesheet.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListChats returns the comment tree of a timesheet.
func (s *TimesheetService) ListChats(ctx context.Context, actor Actor, timesheetID string) ([]entity.TimesheetChat, error) {
	ts, err := s.repos.Timesheet.FindByID(ctx, timesheetID)
	if err != nil {
		return nil, notFoundOr(err, "timesheet")
	}
	if !canViewTimesheet(actor, ts) {
		return nil, ErrAuthorization("timesheet is not visible to you")
	}
	chats, err := s.repos.Timesheet.ListChats(ctx, ts.ID)
	if err != nil {
		return nil, err
	}
	return BuildChatTree(chats), nil
}

// DeleteChat removes a comment and every reply below it. Authors and hr
// admins may delete.
func (s *TimesheetService) DeleteChat(ctx context.Context, actor Actor, timesheetID, chatID string) error {
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		chat, err := tx.Timesheet.FindChat(ctx, timesheetID, chatID)
		if err != nil {
			return notFoundOr(err, "comment")
		}
		if chat.AuthorID != actor.EmployeeID && !actor.IsAdmin() {
			return ErrAuthorization("only the author may delete this comment")
		}
		return tx.Timesheet.DeleteChatTree(ctx, chat.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("timesheet comment deleted", zap.String("chat_id", chatID))
	return nil
}

// BuildChatTree nests a flat, oldest-first list under its parents. Comments
// whose parent is missing are kept at the top level.
func BuildChatTree(flat []entity.TimesheetChat) []entity.TimesheetChat {
	children := make(map[string][]int)
	present := make(map[string]bool, len(flat))
	for _, c := range flat {
		present[c.ID] = true
	}
	var roots []int
	for i, c := range flat {
		if c.ParentID != nil && present[*c.ParentID] && *c.ParentID != c.ID {
			children[*c.ParentID] = append(children[*c.ParentID], i)
			continue
		}
		roots = append(roots, i)
	}

	var build func(i int) entity.TimesheetChat
	build = func(i int) entity.TimesheetChat {
		node := flat[i]
		node.Replies = nil
		for _, child := range children[node.ID] {
			node.Replies = append(node.Replies, build(child))
		}
		return node
	}

	out := make([]entity.TimesheetChat, 0, len(roots))
	for _, i := range roots {
		out = append(out, build(i))
	}
	return out
}
