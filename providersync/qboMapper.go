package providersync

import (
	"encoding/json"
	"strings"

	"bitbucket.org/mmdatafocus/finsync_backend/models"
)

type qboRef struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

type qboInvoice struct {
	Id          string      `json:"Id"`
	DocNumber   string      `json:"DocNumber"`
	TotalAmt    json.Number `json:"TotalAmt"`
	Balance     json.Number `json:"Balance"`
	DueDate     string      `json:"DueDate"`
	CustomerRef qboRef      `json:"CustomerRef"`
}

type qboEmail struct {
	Address string `json:"Address"`
}

type qboPhone struct {
	FreeFormNumber string `json:"FreeFormNumber"`
}

type qboCustomer struct {
	Id               string    `json:"Id"`
	DisplayName      string    `json:"DisplayName"`
	PrimaryEmailAddr *qboEmail `json:"PrimaryEmailAddr"`
	PrimaryPhone     *qboPhone `json:"PrimaryPhone"`
}

type qboAccount struct {
	Id          string `json:"Id"`
	Name        string `json:"Name"`
	AccountType string `json:"AccountType"`
	AcctNum     string `json:"AcctNum"`
}

type qboPayment struct {
	Id               string      `json:"Id"`
	TxnDate          string      `json:"TxnDate"`
	TotalAmt         json.Number `json:"TotalAmt"`
	PaymentRefNum    string      `json:"PaymentRefNum"`
	CustomerRef      qboRef      `json:"CustomerRef"`
	PaymentMethodRef *qboRef     `json:"PaymentMethodRef"`
}

type qboPurchase struct {
	Id          string      `json:"Id"`
	TxnDate     string      `json:"TxnDate"`
	TotalAmt    json.Number `json:"TotalAmt"`
	PaymentType string      `json:"PaymentType"`
	PrivateNote string      `json:"PrivateNote"`
	EntityRef   qboRef      `json:"EntityRef"`
	AccountRef  qboRef      `json:"AccountRef"`
}

type qboBill struct {
	Id        string      `json:"Id"`
	DocNumber string      `json:"DocNumber"`
	TxnDate   string      `json:"TxnDate"`
	TotalAmt  json.Number `json:"TotalAmt"`
	VendorRef qboRef      `json:"VendorRef"`
}

// QBO has no single status string; an invoice with an outstanding balance is
// open, a settled one is paid.
func qboInvoiceStatus(balance json.Number) string {
	if decimalFromNumber(balance).IsPositive() {
		return "OPEN"
	}
	return "PAID"
}

func mapQboInvoice(item qboInvoice) *models.Invoice {
	externalId := strings.TrimSpace(item.Id)
	if externalId == "" {
		return nil
	}
	return &models.Invoice{
		Provider:      models.ProviderQBO,
		ExternalId:    externalId,
		InvoiceNumber: strings.TrimSpace(item.DocNumber),
		CustomerName:  strings.TrimSpace(item.CustomerRef.Name),
		Amount:        decimalFromNumber(item.TotalAmt),
		Status:        qboInvoiceStatus(item.Balance),
		DueDate:       parseDate(item.DueDate),
	}
}

func mapQboCustomer(item qboCustomer) *models.Customer {
	externalId := strings.TrimSpace(item.Id)
	if externalId == "" {
		return nil
	}
	email := ""
	if item.PrimaryEmailAddr != nil {
		email = strings.TrimSpace(item.PrimaryEmailAddr.Address)
	}
	phone := ""
	if item.PrimaryPhone != nil {
		phone = strings.TrimSpace(item.PrimaryPhone.FreeFormNumber)
	}
	return &models.Customer{
		Provider:   models.ProviderQBO,
		ExternalId: externalId,
		Name:       strings.TrimSpace(item.DisplayName),
		Email:      email,
		Phone:      phone,
	}
}

func mapQboAccount(item qboAccount) *models.Account {
	externalId := strings.TrimSpace(item.Id)
	if externalId == "" {
		return nil
	}
	return &models.Account{
		Provider:   models.ProviderQBO,
		ExternalId: externalId,
		Name:       strings.TrimSpace(item.Name),
		Type:       strings.TrimSpace(item.AccountType),
		Code:       strings.TrimSpace(item.AcctNum),
	}
}

func mapQboPayment(item qboPayment) *models.Payment {
	externalId := strings.TrimSpace(item.Id)
	if externalId == "" {
		return nil
	}
	method := "Unknown"
	if item.PaymentMethodRef != nil {
		method = fallback(item.PaymentMethodRef.Name, "Unknown")
	}
	return &models.Payment{
		Provider:      models.ProviderQBO,
		ExternalId:    externalId,
		Date:          parseDate(item.TxnDate),
		CustomerName:  strings.TrimSpace(item.CustomerRef.Name),
		InvoiceNumber: "-",
		Amount:        decimalFromNumber(item.TotalAmt),
		Method:        method,
		Reference:     fallbackDash(item.PaymentRefNum),
	}
}

func mapQboPurchase(item qboPurchase) *models.Expense {
	externalId := strings.TrimSpace(item.Id)
	if externalId == "" {
		return nil
	}
	description := item.PrivateNote
	if strings.TrimSpace(description) == "" {
		description = item.PaymentType
	}
	return &models.Expense{
		Provider:    models.ProviderQBO,
		ExternalId:  externalId,
		Date:        parseDate(item.TxnDate),
		Description: fallbackDash(description),
		VendorName:  fallbackDash(item.EntityRef.Name),
		Category:    fallbackDash(item.AccountRef.Name),
		Amount:      decimalFromNumber(item.TotalAmt),
		Status:      "Recorded",
	}
}

func mapQboBill(item qboBill) *models.Expense {
	externalId := strings.TrimSpace(item.Id)
	if externalId == "" {
		return nil
	}
	description := "-"
	if n := strings.TrimSpace(item.DocNumber); n != "" {
		description = "Bill " + n
	}
	return &models.Expense{
		Provider:    models.ProviderQBO,
		ExternalId:  externalId,
		Date:        parseDate(item.TxnDate),
		Description: description,
		VendorName:  fallbackDash(item.VendorRef.Name),
		Category:    "-",
		Amount:      decimalFromNumber(item.TotalAmt),
		Status:      "Recorded",
	}
}
