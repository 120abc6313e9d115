package extract

import (
	"strings"
)

// Section markers of the reply format. ComposePrompt instructs the model to
// emit them and ParseResponse recognises them, so both sides share these.
const (
	HeaderCustomer    = "Customer"
	HeaderOrder       = "Quote / Order"
	HeaderNote        = "Note"
	HeaderTask        = "Task"
	HeaderAmbiguities = "Ambiguities (if any)"
)

// TableColumns is the header row of the line-item table, in order.
var TableColumns = []string{"Product Name", "Quantity", "Unit Price", "Discount", "Validation Status"}

const noneMarker = "none"

// marker renders a section header the way it must appear in the reply.
func marker(name string) string {
	return "**" + name + "**:"
}

// ComposePrompt builds the single prompt sent to the completion service for
// one note.
func ComposePrompt(note string, snap Snapshot) string {
	var sb strings.Builder

	sb.WriteString("You are a sales order assistant. A field salesperson wrote the note below after " +
		"a customer interaction. Turn it into a structured quote or order using the catalog for reference.")

	sb.WriteString("\n\n## Known Customers\n")
	sb.WriteString(orNone(snap.Vendors))

	sb.WriteString("\n\n## Inventory (name | stock | unit price | min price)\n")
	sb.WriteString(orNone(snap.Inventory))

	sb.WriteString("\n\n## Salesperson Note\n")
	sb.WriteString(strings.TrimSpace(note))

	sb.WriteString("\n\n## Instructions\n")
	sb.WriteString("1. Identify the customer. Prefer the spelling from Known Customers when it clearly refers to one of them.\n")
	sb.WriteString("2. List every product mentioned with its quantity, unit price and discount.\n")
	sb.WriteString("3. Keep the quantities and prices exactly as the salesperson wrote them. " +
		"Never replace a stated price with the catalog price. Leave the discount empty unless one is stated.\n")
	sb.WriteString("4. Check each line against the inventory: flag quantities above stock and prices below the minimum " +
		"in the Validation Status column, otherwise write OK.\n")
	sb.WriteString("5. Put remaining remarks in the note and any follow-up action in the task. Write \"" + noneMarker + "\" when there is nothing.\n")
	sb.WriteString("6. List anything you were unsure about under ambiguities.\n")

	sb.WriteString("\n## Output Format\n")
	sb.WriteString("Reply with exactly these sections and nothing else:\n\n")
	sb.WriteString(marker(HeaderCustomer) + " <customer name>\n")
	sb.WriteString(marker(HeaderOrder) + "\n")
	sb.WriteString("| " + strings.Join(TableColumns, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat("---|", len(TableColumns)) + "\n")
	sb.WriteString("| <product> | <quantity> | <unit price> | <discount %> | <OK or warning> |\n")
	sb.WriteString(marker(HeaderNote) + "\n> <note or " + noneMarker + ">\n")
	sb.WriteString(marker(HeaderTask) + "\n> <task or " + noneMarker + ">\n")
	sb.WriteString(marker(HeaderAmbiguities) + "\n> <ambiguities or " + noneMarker + ">")

	return sb.String()
}

func orNone(block string) string {
	if strings.TrimSpace(block) == "" {
		return "(" + noneMarker + ")"
	}
	return block
}
