package providersync

import (
	"encoding/json"
	"strings"

	"bitbucket.org/mmdatafocus/finsync_backend/models"
)

// Typed intermediates for Xero's resource payloads. Optional fields decode
// to zero values; the mappers turn those into the fixed fallbacks.

type xeroContactRef struct {
	Name string `json:"Name"`
}

type xeroInvoice struct {
	InvoiceID     string         `json:"InvoiceID"`
	InvoiceNumber string         `json:"InvoiceNumber"`
	Type          string         `json:"Type"`
	Status        string         `json:"Status"`
	Total         json.Number    `json:"Total"`
	Date          string         `json:"Date"`
	DueDate       string         `json:"DueDate"`
	Contact       xeroContactRef `json:"Contact"`
}

type xeroPhone struct {
	PhoneType   string `json:"PhoneType"`
	PhoneNumber string `json:"PhoneNumber"`
}

type xeroContact struct {
	ContactID    string      `json:"ContactID"`
	Name         string      `json:"Name"`
	EmailAddress string      `json:"EmailAddress"`
	Phones       []xeroPhone `json:"Phones"`
}

type xeroAccount struct {
	AccountID string `json:"AccountID"`
	Name      string `json:"Name"`
	Type      string `json:"Type"`
	Code      string `json:"Code"`
}

type xeroPaymentInvoice struct {
	InvoiceNumber string         `json:"InvoiceNumber"`
	Contact       xeroContactRef `json:"Contact"`
}

type xeroPayment struct {
	PaymentID   string             `json:"PaymentID"`
	Date        string             `json:"Date"`
	Amount      json.Number        `json:"Amount"`
	Reference   string             `json:"Reference"`
	PaymentType string             `json:"PaymentType"`
	Invoice     xeroPaymentInvoice `json:"Invoice"`
}

type xeroLineItem struct {
	Description string `json:"Description"`
	AccountCode string `json:"AccountCode"`
}

type xeroBankTransaction struct {
	BankTransactionID string         `json:"BankTransactionID"`
	Type              string         `json:"Type"`
	Date              string         `json:"Date"`
	Total             json.Number    `json:"Total"`
	Reference         string         `json:"Reference"`
	Contact           xeroContactRef `json:"Contact"`
	LineItems         []xeroLineItem `json:"LineItems"`
}

// Xero's "AUTHORISED" means an approved, unpaid invoice; the dashboard shows
// it as "OPEN" to line up with QBO's balance-derived status.
func normalizeXeroInvoiceStatus(status string) string {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "AUTHORISED" {
		return "OPEN"
	}
	return fallback(status, "Unknown")
}

func mapXeroInvoice(item xeroInvoice) *models.Invoice {
	externalId := strings.TrimSpace(item.InvoiceID)
	if externalId == "" {
		return nil
	}
	return &models.Invoice{
		Provider:      models.ProviderXero,
		ExternalId:    externalId,
		InvoiceNumber: strings.TrimSpace(item.InvoiceNumber),
		CustomerName:  strings.TrimSpace(item.Contact.Name),
		Amount:        decimalFromNumber(item.Total),
		Status:        normalizeXeroInvoiceStatus(item.Status),
		DueDate:       parseDate(item.DueDate),
	}
}

func mapXeroContact(item xeroContact) *models.Customer {
	externalId := strings.TrimSpace(item.ContactID)
	if externalId == "" {
		return nil
	}
	phone := ""
	for _, p := range item.Phones {
		if strings.TrimSpace(p.PhoneNumber) != "" {
			phone = strings.TrimSpace(p.PhoneNumber)
			break
		}
	}
	return &models.Customer{
		Provider:   models.ProviderXero,
		ExternalId: externalId,
		Name:       strings.TrimSpace(item.Name),
		Email:      strings.TrimSpace(item.EmailAddress),
		Phone:      phone,
	}
}

func mapXeroAccount(item xeroAccount) *models.Account {
	externalId := strings.TrimSpace(item.AccountID)
	if externalId == "" {
		return nil
	}
	return &models.Account{
		Provider:   models.ProviderXero,
		ExternalId: externalId,
		Name:       strings.TrimSpace(item.Name),
		Type:       strings.TrimSpace(item.Type),
		Code:       strings.TrimSpace(item.Code),
	}
}

func mapXeroPayment(item xeroPayment) *models.Payment {
	externalId := strings.TrimSpace(item.PaymentID)
	if externalId == "" {
		return nil
	}
	return &models.Payment{
		Provider:      models.ProviderXero,
		ExternalId:    externalId,
		Date:          parseDate(item.Date),
		CustomerName:  strings.TrimSpace(item.Invoice.Contact.Name),
		InvoiceNumber: fallbackDash(item.Invoice.InvoiceNumber),
		Amount:        decimalFromNumber(item.Amount),
		Method:        fallback(item.PaymentType, "Unknown"),
		Reference:     fallbackDash(item.Reference),
	}
}

// mapXeroBankTransaction keeps only money-out ("SPEND") transactions;
// receives and transfers are excluded by returning nil.
func mapXeroBankTransaction(item xeroBankTransaction) *models.Expense {
	if !strings.EqualFold(strings.TrimSpace(item.Type), "SPEND") {
		return nil
	}
	externalId := strings.TrimSpace(item.BankTransactionID)
	if externalId == "" {
		return nil
	}
	description := item.Reference
	category := ""
	if len(item.LineItems) > 0 {
		if description == "" {
			description = item.LineItems[0].Description
		}
		category = item.LineItems[0].AccountCode
	}
	return &models.Expense{
		Provider:    models.ProviderXero,
		ExternalId:  externalId,
		Date:        parseDate(item.Date),
		Description: fallbackDash(description),
		VendorName:  fallbackDash(item.Contact.Name),
		Category:    fallbackDash(category),
		Amount:      decimalFromNumber(item.Total),
		Status:      "Recorded",
	}
}

// mapXeroBill turns an ACCPAY invoice into the expense union.
func mapXeroBill(item xeroInvoice) *models.Expense {
	externalId := strings.TrimSpace(item.InvoiceID)
	if externalId == "" {
		return nil
	}
	description := "-"
	if n := strings.TrimSpace(item.InvoiceNumber); n != "" {
		description = "Bill " + n
	}
	return &models.Expense{
		Provider:    models.ProviderXero,
		ExternalId:  externalId,
		Date:        parseDate(item.Date),
		Description: description,
		VendorName:  fallbackDash(item.Contact.Name),
		Category:    "-",
		Amount:      decimalFromNumber(item.Total),
		Status:      "Recorded",
	}
}
