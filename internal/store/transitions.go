package store

import "github.com/jeogo/casnos-sub000/internal/models"

var statusTransitions = map[models.TicketStatus][]models.TicketStatus{
	models.TicketPending: {models.TicketCalled},
	models.TicketCalled:  {models.TicketServed},
	models.TicketServed:  {},
}

var printTransitions = map[models.PrintStatus][]models.PrintStatus{
	models.PrintPending:  {models.PrintPrinting, models.PrintPrinted, models.PrintFailed},
	models.PrintPrinting: {models.PrintPrinted, models.PrintFailed},
	models.PrintPrinted:  {},
	models.PrintFailed:   {},
}

func CanTransition(from, to models.TicketStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionPrint(from, to models.PrintStatus) bool {
	for _, next := range printTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidTicketStatus(s models.TicketStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

func ValidPrintStatus(s models.PrintStatus) bool {
	_, ok := printTransitions[s]
	return ok
}
