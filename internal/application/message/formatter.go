// Package message renders notification titles and bodies. Everything here is
// pure: no I/O, no state, and no field access that can panic.
package message

import (
	"fmt"
	"strconv"
	"strings"
)

// Event codes, one per notification kind.
const (
	CodeNotificationSent      = "NOTIFICATION_SENT"
	CodeFriendRequestSent     = "FRIEND_REQUEST_SENT"
	CodeFriendRequestAccepted = "FRIEND_REQUEST_ACCEPTED"
	CodeFriendRequestRejected = "FRIEND_REQUEST_REJECTED"
	CodeFriendRemoved         = "FRIEND_REMOVED"
	CodeInviteCreated         = "INVITE_CREATED"
	CodeInviteAccepted        = "INVITE_ACCEPTED"
	CodeInviteRejected        = "INVITE_REJECTED"
	CodeUserJoinedCompany     = "USER_JOINED_COMPANY"
	CodeUserRemoved           = "USER_REMOVED"
	CodeUserRoleUpdated       = "USER_ROLE_UPDATED"
	CodeCompanyCreated        = "COMPANY_CREATED"
	CodeCompanyUpdated        = "COMPANY_UPDATED"
	CodeCompanyDeleted        = "COMPANY_DELETED"
)

var sentences = map[string]string{
	CodeNotificationSent:      "You received a new message.",
	CodeFriendRequestSent:     "You received a new friend request.",
	CodeFriendRequestAccepted: "Your friend request was accepted.",
	CodeFriendRequestRejected: "Your friend request was rejected.",
	CodeFriendRemoved:         "A user removed you from their friends.",
	CodeInviteCreated:         "You have been invited to join a company.",
	CodeInviteAccepted:        "Your invite was accepted.",
	CodeInviteRejected:        "Your invite was rejected.",
	CodeUserJoinedCompany:     "You joined a company.",
	CodeUserRemoved:           "You were removed from a company.",
	CodeUserRoleUpdated:       "Your role in a company was updated.",
	CodeCompanyCreated:        "Your company was created.",
	CodeCompanyUpdated:        "A company you belong to was updated.",
	CodeCompanyDeleted:        "A company you belonged to was deleted.",
}

// Person identifies a sender or recipient.
type Person struct {
	Name  string
	Email string
}

// Company holds the company facts shown in a body.
type Company struct {
	Name        string
	ID          string
	Description string
	OwnerName   string
	OwnerEmail  string
	CreatedAt   string
	MemberCount *int
	LogoURL     string
}

type Invite struct {
	ID    string
	Email string
	URL   string
}

// AdditionalData is caller-supplied content of a direct notification.
type AdditionalData struct {
	Title   string
	Message string
}

// Descriptor is everything the formatter may render. Every field is optional
// except EventCode.
type Descriptor struct {
	EventCode      string
	Sender         *Person
	Recipient      *Person
	FriendEmail    string
	Company        *Company
	Invite         *Invite
	NewRole        string
	OldRole        string
	AdditionalData *AdditionalData
}

// Title returns "[CODE]", or "<subject> [NOTIFICATION_SENT]" for a direct
// notification that carries a subject.
func Title(d Descriptor) string {
	if d.EventCode == CodeNotificationSent && d.AdditionalData != nil && d.AdditionalData.Title != "" {
		return d.AdditionalData.Title + " [" + CodeNotificationSent + "]"
	}
	return "[" + d.EventCode + "]"
}

// Body returns newline-separated sections. Absent fields produce no section.
func Body(d Descriptor) string {
	var b sections
	b.add(sentence(d.EventCode))

	if d.EventCode == CodeNotificationSent && d.AdditionalData != nil {
		b.addf("Subject: %s", d.AdditionalData.Title)
		b.addf("Message: %s", d.AdditionalData.Message)
	}
	if d.Sender != nil {
		b.addf("From: %s", person(*d.Sender))
	}
	if d.Recipient != nil {
		b.addf("To: %s", person(*d.Recipient))
	}
	b.addf("Friend email: %s", d.FriendEmail)

	if c := d.Company; c != nil {
		b.addf("Company: %s", c.Name)
		b.addf("Company ID: %s", c.ID)
		b.addf("Description: %s", c.Description)
		b.addf("Primary owner: %s", person(Person{Name: c.OwnerName, Email: c.OwnerEmail}))
		b.addf("Created at: %s", c.CreatedAt)
		if c.MemberCount != nil {
			b.add("Members: " + strconv.Itoa(*c.MemberCount))
		}
		b.addf("Logo: %s", c.LogoURL)
	}
	if inv := d.Invite; inv != nil {
		b.addf("Invite ID: %s", inv.ID)
		b.addf("Invited email: %s", inv.Email)
		b.addf("Invite link: %s", inv.URL)
	}
	if d.NewRole != "" {
		b.addf("New role: %s", d.NewRole)
		b.addf("Previous role: %s", d.OldRole)
	}
	return b.String()
}

func sentence(code string) string {
	if s, ok := sentences[code]; ok {
		return s
	}
	return strings.ToLower(code) + ": a new notification has been created."
}

// person renders "Name <email>", "Name" or "email"; empty when both are blank.
func person(p Person) string {
	switch {
	case p.Name != "" && p.Email != "":
		return fmt.Sprintf("%s <%s>", p.Name, p.Email)
	case p.Name != "":
		return p.Name
	default:
		return p.Email
	}
}

type sections []string

func (s *sections) add(line string) {
	if line != "" {
		*s = append(*s, line)
	}
}

// addf adds format only when its single argument is non-empty.
func (s *sections) addf(format, value string) {
	if value != "" {
		*s = append(*s, fmt.Sprintf(format, value))
	}
}

func (s sections) String() string {
	return strings.Join(s, "\n")
}
