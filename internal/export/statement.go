package export

import (
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
)

// Statement is the parsed form of an XML statement
type Statement struct {
	GeneratedAt time.Time
	Accounts    []models.Account
	Entries     []models.HistoryEntry
}

// WriteStatement renders accounts and history as an XML statement
func WriteStatement(w io.Writer, accounts []models.Account, entries []models.HistoryEntry, generatedAt time.Time) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("statement")
	root.CreateAttr("generated", generatedAt.UTC().Format(time.RFC3339))

	list := root.CreateElement("accounts")
	balances := make([]decimal.Decimal, 0, len(accounts))
	for _, a := range accounts {
		el := list.CreateElement("account")
		el.CreateAttr("id", a.ID)
		el.CreateAttr("name", a.Name)
		el.CreateAttr("category", a.Category)
		if a.Icon != "" {
			el.CreateAttr("icon", a.Icon)
		}
		if a.Color != "" {
			el.CreateAttr("color", a.Color)
		}
		el.CreateElement("balance").SetText(money.Format(a.Balance))
		balances = append(balances, a.Balance)
	}
	list.CreateAttr("total", money.Format(money.Sum(balances...)))

	history := root.CreateElement("history")
	for _, e := range entries {
		switch {
		case e.Transfer != nil:
			el := history.CreateElement("transfer")
			entryAttrs(el, e)
			el.CreateElement("from").SetText(e.Transfer.FromAccountID)
			el.CreateElement("to").SetText(e.Transfer.ToAccountID)
			el.CreateElement("amount").SetText(money.Format(e.Transfer.Amount))
			el.CreateElement("category").SetText(e.Transfer.Category)
			el.CreateElement("note").SetText(e.Transfer.Note)
		case e.Adjustment != nil:
			el := history.CreateElement("adjustment")
			entryAttrs(el, e)
			el.CreateElement("account").SetText(e.Adjustment.AccountID)
			el.CreateElement("old").SetText(money.Format(e.Adjustment.OldBalance))
			el.CreateElement("new").SetText(money.Format(e.Adjustment.NewBalance))
			el.CreateElement("difference").SetText(money.Format(e.Adjustment.Difference))
			el.CreateElement("note").SetText(e.Adjustment.Note)
		}
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write statement: %w", err)
	}
	return nil
}

func entryAttrs(el *etree.Element, e models.HistoryEntry) {
	el.CreateAttr("id", e.ID)
	el.CreateAttr("timestamp", e.Timestamp.UTC().Format(time.RFC3339Nano))
	if e.Signature != "" {
		el.CreateAttr("signature", e.Signature)
	}
}

// ReadStatement parses a statement produced by WriteStatement
func ReadStatement(r io.Reader) (Statement, error) {
	var st Statement
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return st, fmt.Errorf("failed to parse XML: %w", err)
	}

	root := doc.SelectElement("statement")
	if root == nil {
		return st, fmt.Errorf("statement element not found in XML")
	}
	generated, err := time.Parse(time.RFC3339, root.SelectAttrValue("generated", ""))
	if err != nil {
		return st, fmt.Errorf("failed to parse generated time: %w", err)
	}
	st.GeneratedAt = generated

	for _, el := range doc.FindElements("//statement/accounts/account") {
		balance, err := money.Parse(childText(el, "balance"))
		if err != nil {
			return st, fmt.Errorf("account %s: %w", el.SelectAttrValue("id", ""), err)
		}
		st.Accounts = append(st.Accounts, models.Account{
			ID:       el.SelectAttrValue("id", ""),
			Name:     el.SelectAttrValue("name", ""),
			Category: el.SelectAttrValue("category", ""),
			Icon:     el.SelectAttrValue("icon", ""),
			Color:    el.SelectAttrValue("color", ""),
			Balance:  balance,
		})
	}

	for _, el := range doc.FindElements("//statement/history/*") {
		entry, err := readEntry(el)
		if err != nil {
			return st, err
		}
		st.Entries = append(st.Entries, entry)
	}
	return st, nil
}

func readEntry(el *etree.Element) (models.HistoryEntry, error) {
	ts, err := time.Parse(time.RFC3339Nano, el.SelectAttrValue("timestamp", ""))
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	entry := models.HistoryEntry{
		ID:        el.SelectAttrValue("id", ""),
		Timestamp: ts,
		Signature: el.SelectAttrValue("signature", ""),
	}

	switch el.Tag {
	case "transfer":
		amount, err := money.Parse(childText(el, "amount"))
		if err != nil {
			return entry, fmt.Errorf("transfer %s: %w", entry.ID, err)
		}
		entry.Kind = models.EntryTransfer
		entry.Transfer = &models.TransferRecord{
			FromAccountID: childText(el, "from"),
			ToAccountID:   childText(el, "to"),
			Amount:        amount,
			Category:      childText(el, "category"),
			Note:          childText(el, "note"),
			Timestamp:     ts,
		}
	case "adjustment":
		old, err := money.Parse(childText(el, "old"))
		if err != nil {
			return entry, fmt.Errorf("adjustment %s: %w", entry.ID, err)
		}
		updated, err := money.Parse(childText(el, "new"))
		if err != nil {
			return entry, fmt.Errorf("adjustment %s: %w", entry.ID, err)
		}
		diff, err := money.Parse(childText(el, "difference"))
		if err != nil {
			return entry, fmt.Errorf("adjustment %s: %w", entry.ID, err)
		}
		entry.Kind = models.EntryAdjustment
		entry.Adjustment = &models.AdjustmentRecord{
			AccountID:  childText(el, "account"),
			OldBalance: old,
			NewBalance: updated,
			Difference: diff,
			Note:       childText(el, "note"),
			Timestamp:  ts,
		}
	default:
		return entry, fmt.Errorf("unknown history element %q", el.Tag)
	}
	return entry, nil
}

func childText(el *etree.Element, tag string) string {
	child := el.SelectElement(tag)
	if child == nil {
		return ""
	}
	return child.Text()
}
