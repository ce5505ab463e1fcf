// Package sampledata generates a seeded customers/tickets dataset and a
// policy document for demos and local testing.
package sampledata

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

type Customer struct {
	CustomerID int64  `parquet:"customer_id"`
	Name       string `parquet:"name"`
	Email      string `parquet:"email"`
	Region     string `parquet:"region"`
	Segment    string `parquet:"segment"`
}

type Ticket struct {
	TicketID   int64     `parquet:"ticket_id"`
	CustomerID int64     `parquet:"customer_id"`
	Status     string    `parquet:"status"`
	Priority   string    `parquet:"priority"`
	Channel    string    `parquet:"channel"`
	Category   string    `parquet:"category"`
	CreatedAt  time.Time `parquet:"created_at,timestamp"`
	// ResolutionHours is zero for tickets that are not resolved.
	ResolutionHours float64 `parquet:"resolution_hours"`
}

var (
	firstNames = []string{"Ema", "Noah", "Lia", "Jordan", "Priya", "Mateo", "Aiko", "Sam", "Olivia", "Ravi", "Zoe", "Lucas"}
	lastNames  = []string{"Patel", "Kim", "Moreau", "Lee", "Garcia", "Nakamura", "Okafor", "Schmidt", "Rossi", "Silva"}
	regions    = []string{"north", "south", "east", "west"}
	segments   = []string{"consumer", "small_business", "enterprise"}
	channels   = []string{"email", "chat", "phone", "web"}
	categories = []string{"billing", "refund", "shipping", "technical", "account"}
)

type Generator struct {
	rnd *rand.Rand
	now time.Time
}

func NewGenerator(seed int64, now time.Time) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed)), now: now.UTC()}
}

func (g *Generator) Customers(n int) []Customer {
	customers := make([]Customer, 0, n)
	for i := 1; i <= n; i++ {
		first := pickOne(g.rnd, firstNames)
		last := pickOne(g.rnd, lastNames)
		customers = append(customers, Customer{
			CustomerID: int64(i),
			Name:       first + " " + last,
			Email:      fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			Region:     pickOne(g.rnd, regions),
			Segment:    pickOne(g.rnd, segments),
		})
	}
	return customers
}

// Tickets draws n tickets for the given customers, created within the 120
// days before the generator's anchor time.
func (g *Generator) Tickets(customers []Customer, n int) []Ticket {
	if len(customers) == 0 {
		return nil
	}
	tickets := make([]Ticket, 0, n)
	for i := 1; i <= n; i++ {
		status := g.pickStatus()
		createdAt := g.now.Add(-time.Duration(g.rnd.Int63n(int64(120 * 24 * time.Hour)))).Truncate(time.Second)
		ticket := Ticket{
			TicketID:   int64(1000 + i),
			CustomerID: customers[g.rnd.Intn(len(customers))].CustomerID,
			Status:     status,
			Priority:   g.pickPriority(),
			Channel:    pickOne(g.rnd, channels),
			Category:   pickOne(g.rnd, categories),
			CreatedAt:  createdAt,
		}
		if status == "resolved" || status == "closed" {
			ticket.ResolutionHours = round1(1 + g.rnd.Float64()*96)
		}
		tickets = append(tickets, ticket)
	}
	return tickets
}

func (g *Generator) pickStatus() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 30:
		return "open"
	case p < 45:
		return "pending"
	case p < 75:
		return "resolved"
	default:
		return "closed"
	}
}

func (g *Generator) pickPriority() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 40:
		return "low"
	case p < 75:
		return "medium"
	case p < 93:
		return "high"
	default:
		return "urgent"
	}
}

// Policy is the support policy document that accompanies the dataset.
func Policy() string {
	return strings.Join([]string{
		"Customer Support Policy",
		"",
		"Refunds: customers may request a refund within 30 days of purchase. Refund requests are handled as tickets in the refund category and must be resolved within 5 business days.",
		"",
		"Overdue tickets: a ticket is overdue when it stays open or pending for more than 14 days. Urgent tickets are overdue after 24 hours.",
		"",
		"Escalation: high and urgent priority tickets from enterprise customers are escalated to a senior agent after 48 hours without a response.",
		"",
		"Shipping: standard shipping is free on orders over $50. Lost parcels are replaced once a shipping ticket has been open for 7 days.",
		"",
	}, "\n")
}

func round1(value float64) float64 {
	return float64(int64(value*10+0.5)) / 10
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
