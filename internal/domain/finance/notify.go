package finance

import (
	"context"
	"fmt"
	"strings"

	"hris/internal/platform/email"
)

// Notifier is told about request status changes. Failures are logged by the
// service and never roll back the change.
type Notifier interface {
	StatusChanged(ctx context.Context, req FinancialRequest) error
}

type noopNotifier struct{}

func (noopNotifier) StatusChanged(context.Context, FinancialRequest) error { return nil }

type Mailer interface {
	Deliver(ctx context.Context, msg email.Message) error
}

// MailNotifier emails the employee when their request changes status.
type MailNotifier struct {
	Mailer Mailer
	From   string
}

func NewMailNotifier(mailer Mailer, from string) *MailNotifier {
	return &MailNotifier{Mailer: mailer, From: from}
}

func (n *MailNotifier) StatusChanged(ctx context.Context, req FinancialRequest) error {
	if n.Mailer == nil || strings.TrimSpace(req.EmployeeEmail) == "" {
		return nil
	}
	return n.Mailer.Deliver(ctx, n.message(req))
}

func (n *MailNotifier) message(req FinancialRequest) email.Message {
	to := req.EmployeeEmail
	if name := strings.TrimSpace(req.EmployeeName); name != "" {
		to = fmt.Sprintf("%q <%s>", name, req.EmployeeEmail)
	}
	subject, body := statusMessage(req)
	return email.Message{From: n.From, To: to, Subject: subject, Body: body}
}

func statusMessage(req FinancialRequest) (string, string) {
	name := req.EmployeeName
	if name == "" {
		name = "there"
	}
	kind := string(req.RequestType)
	amount := req.Currency + " " + req.Amount.StringFixed(2)

	switch req.Status {
	case StatusApproved:
		return fmt.Sprintf("Your %s request was approved", kind),
			fmt.Sprintf("Hi %s,\n\nYour %s request for %s has been approved and is awaiting disbursement.\n", name, kind, amount)
	case StatusRejected:
		body := fmt.Sprintf("Hi %s,\n\nYour %s request for %s was not approved.\n", name, kind, amount)
		if req.RejectionReason != "" {
			body += "\nReason: " + req.RejectionReason + "\n"
		}
		return fmt.Sprintf("Your %s request was rejected", kind), body
	case StatusPaid:
		body := fmt.Sprintf("Hi %s,\n\nYour %s request for %s has been paid.\n", name, kind, amount)
		if req.RequestType.Recoverable() {
			body += fmt.Sprintf("\nIt will be recovered over %d payroll cycle(s) of %s %s.\n",
				req.InstallmentMonths, req.Currency, req.InstallmentAmount.StringFixed(2))
		}
		return fmt.Sprintf("Your %s has been paid", kind), body
	case StatusCompleted:
		return fmt.Sprintf("Your %s is fully repaid", kind),
			fmt.Sprintf("Hi %s,\n\nYour %s of %s has been fully recovered. Nothing further is owed.\n", name, kind, amount)
	default:
		return fmt.Sprintf("Your %s request is now %s", kind, req.Status),
			fmt.Sprintf("Hi %s,\n\nYour %s request for %s is now %s.\n", name, kind, amount, req.Status)
	}
}
