// Package directory keeps the ordered channel list of one space and owns
// the rules for changing it: only Owners and Admins manage channels, names
// are validated, and a space never loses its last channel.
package directory

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"github.com/lalith-99/huddle/internal/models"
)

const (
	MaxNameLength        = 80
	MaxDescriptionLength = 500
)

// CanManage reports whether role may create, rename, or delete channels.
func CanManage(role models.Role) bool {
	return role.IsModerator()
}

// NormalizeName trims name and checks its length.
func NormalizeName(op, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation(op, "channel name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", apperr.Validation(op, "channel name is too long")
	}
	return name, nil
}

// CheckDescription validates a channel description.
func CheckDescription(op, description string) (string, error) {
	description = strings.TrimSpace(description)
	if len([]rune(description)) > MaxDescriptionLength {
		return "", apperr.Validation(op, "channel description is too long")
	}
	return description, nil
}

// Directory is the ordered channel list of a single space. It is not safe
// for concurrent use; the read-model serializes access.
type Directory struct {
	spaceID  uuid.UUID
	channels []models.Channel
}

// New builds a directory from channels in any order. They are sorted by
// creation time, keeping the given order for equal timestamps.
func New(spaceID uuid.UUID, channels []models.Channel) *Directory {
	d := &Directory{spaceID: spaceID, channels: append([]models.Channel(nil), channels...)}
	sort.SliceStable(d.channels, func(i, j int) bool {
		return d.channels[i].CreatedAt.Before(d.channels[j].CreatedAt)
	})
	return d
}

func (d *Directory) SpaceID() uuid.UUID { return d.spaceID }

func (d *Directory) Len() int { return len(d.channels) }

// List returns a copy of the channels in order.
func (d *Directory) List() []models.Channel {
	return append([]models.Channel(nil), d.channels...)
}

// Get returns the channel with id.
func (d *Directory) Get(id uuid.UUID) (models.Channel, bool) {
	if i := d.index(id); i >= 0 {
		return d.channels[i], true
	}
	return models.Channel{}, false
}

// First returns the first channel, if any.
func (d *Directory) First() (models.Channel, bool) {
	if len(d.channels) == 0 {
		return models.Channel{}, false
	}
	return d.channels[0], true
}

// CheckCreate validates a create request and returns the normalized name
// and description.
func (d *Directory) CheckCreate(role models.Role, name, description string) (string, string, error) {
	const op = "directory.CreateChannel"
	if !CanManage(role) {
		return "", "", apperr.Permission(op, "only owners and admins can create channels")
	}
	name, err := NormalizeName(op, name)
	if err != nil {
		return "", "", err
	}
	if d.nameTaken(name, uuid.Nil) {
		return "", "", apperr.Validation(op, "a channel with that name already exists")
	}
	description, err = CheckDescription(op, description)
	if err != nil {
		return "", "", err
	}
	return name, description, nil
}

// CheckUpdate validates a rename of channel id.
func (d *Directory) CheckUpdate(role models.Role, id uuid.UUID, name, description string) (string, string, error) {
	const op = "directory.UpdateChannel"
	if !CanManage(role) {
		return "", "", apperr.Permission(op, "only owners and admins can edit channels")
	}
	if d.index(id) < 0 {
		return "", "", apperr.NotFound(op, "channel not found")
	}
	name, err := NormalizeName(op, name)
	if err != nil {
		return "", "", err
	}
	if d.nameTaken(name, id) {
		return "", "", apperr.Validation(op, "a channel with that name already exists")
	}
	description, err = CheckDescription(op, description)
	if err != nil {
		return "", "", err
	}
	return name, description, nil
}

// CheckDelete validates deleting channel id.
func (d *Directory) CheckDelete(role models.Role, id uuid.UUID) error {
	const op = "directory.DeleteChannel"
	if !CanManage(role) {
		return apperr.Permission(op, "only owners and admins can delete channels")
	}
	if d.index(id) < 0 {
		return apperr.NotFound(op, "channel not found")
	}
	if len(d.channels) <= 1 {
		return apperr.Validation(op, "cannot delete the last channel in a space")
	}
	return nil
}

// Add appends ch, or replaces it in place when already present.
func (d *Directory) Add(ch models.Channel) {
	if i := d.index(ch.ID); i >= 0 {
		d.channels[i] = ch
		return
	}
	d.channels = append(d.channels, ch)
}

// Replace overwrites the stored copy of ch without moving it.
func (d *Directory) Replace(ch models.Channel) bool {
	if i := d.index(ch.ID); i >= 0 {
		d.channels[i] = ch
		return true
	}
	return false
}

// Remove drops channel id. It reports whether anything was removed.
func (d *Directory) Remove(id uuid.UUID) bool {
	i := d.index(id)
	if i < 0 {
		return false
	}
	d.channels = append(d.channels[:i], d.channels[i+1:]...)
	return true
}

func (d *Directory) index(id uuid.UUID) int {
	for i, ch := range d.channels {
		if ch.ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) nameTaken(name string, except uuid.UUID) bool {
	for _, ch := range d.channels {
		if ch.ID != except && strings.EqualFold(ch.Name, name) {
			return true
		}
	}
	return false
}
