package provider

import (
	"fmt"
	"strings"

	"github.com/elariis/portal-chat/internal/store"
)

// Category names the rule that matched an utterance. Recorded in message
// metadata so support staff can see why a fallback reply was chosen.
type Category string

const (
	CategoryBrand    Category = "brand"
	CategoryHR       Category = "hr"
	CategoryIT       Category = "it"
	CategoryPortal   Category = "portal"
	CategoryGreeting Category = "greeting"
	CategoryHelp     Category = "help"
	CategoryDefault  Category = "default"
)

// FallbackProvider produces deterministic keyword-classified replies. It
// never fails and performs no I/O, which makes it the guaranteed-available
// baseline when the remote model is unconfigured or misbehaving.
type FallbackProvider struct{}

func NewFallbackProvider() *FallbackProvider { return &FallbackProvider{} }

// rule order is the evaluation priority; first match wins.
var fallbackRules = []struct {
	category Category
	keywords []string
}{
	{CategoryBrand, []string{"elariis"}},
	{CategoryHR, []string{"hr", "human resources", "payroll", "benefits", "leave", "vacation"}},
	{CategoryIT, []string{"it", "technical", "computer", "software", "password", "system"}},
	{CategoryPortal, []string{"employee", "portal", "profile", "directory"}},
	{CategoryGreeting, []string{"hello", "hi", "hey", "good morning", "good afternoon"}},
	{CategoryHelp, []string{"help", "support", "assistance"}},
}

// Classify returns the first matching category for the lowercased utterance.
// It is a pure function of its input.
func (p *FallbackProvider) Classify(utterance string) Category {
	lowered := strings.ToLower(utterance)
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.category
			}
		}
	}
	return CategoryDefault
}

// Generate maps the utterance to its category's template. The greeting
// template interpolates the user's given name when known.
func (p *FallbackProvider) Generate(utterance string, user store.User) (string, Category) {
	category := p.Classify(utterance)
	switch category {
	case CategoryBrand:
		return "The Elariis Portal is your central hub for HR services, IT support, and employee resources. You can reach every department's tools from the portal home page. What would you like to do there?", category
	case CategoryHR:
		return "I can help you with HR-related questions! For specific HR matters like payroll, benefits, or leave requests, I recommend visiting the HR Management portal or contacting your HR representative directly.", category
	case CategoryIT:
		return "For technical support and IT-related issues, please visit the IT Help Desk portal or submit a support ticket. Our IT team will assist you with any technical problems.", category
	case CategoryPortal:
		return "You can access your employee information, update your profile, and view the company directory through the Employee Portal. Is there something specific you'd like to know about?", category
	case CategoryGreeting:
		name := strings.TrimSpace(user.GivenName)
		if name == "" {
			name = "there"
		}
		return fmt.Sprintf("Hello %s! I'm your AI assistant for the Elariis Portal. How can I help you today? I can assist with questions about HR, IT support, employee services, and more.", name), category
	case CategoryHelp:
		return "I'm here to help! I can assist you with:\n\n• HR-related questions and processes\n• IT support and technical issues\n• Employee portal navigation\n• General workplace information\n\nWhat would you like to know about?", category
	default:
		return "I understand you're looking for assistance. Could you please provide more details about what you need help with? I can help with HR matters, IT support, employee services, and general workplace questions.", category
	}
}
