package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"workflow-backend/internal/briefings"
)

var projectTypeLabels = map[string]string{
	briefings.ProjectLanding:       "Landing page",
	briefings.ProjectInstitutional: "Site institucional",
	briefings.ProjectEcommerce:     "E-commerce",
	briefings.ProjectSystem:        "Sistema web",
	briefings.ProjectRedesign:      "Redesign",
}

type briefingView struct {
	briefings.Briefing
	ProjectLabel string
}

func newBriefingView(b briefings.Briefing) briefingView {
	label := projectTypeLabels[b.ProjectType]
	if label == "" {
		label = b.ProjectType
	}
	return briefingView{Briefing: b, ProjectLabel: label}
}

const briefingNotificationTemplate = `<!DOCTYPE html>
<html>
<body>
  <h3>Novo briefing recebido</h3>
  <p><strong>Empresa:</strong> {{.Company}}</p>
  <p><strong>Contato:</strong> {{.ContactName}}</p>
  <p><strong>Email:</strong> {{.Email}}</p>
  <p><strong>Telefone:</strong> {{.Phone}}</p>
  <p><strong>Projeto:</strong> {{.ProjectLabel}}</p>
  <p><strong>Orçamento:</strong> {{.BudgetRange}}</p>
  <p><strong>Prazo:</strong> {{.Deadline}}</p>
  <p><strong>ID:</strong> {{.ID}}</p>
  <p><strong>Descrição:</strong><br/>{{.Description}}</p>
  {{if .ReferenceLinks}}<p><strong>Referências:</strong></p>
  <ul>{{range .ReferenceLinks}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}
  {{if .AttachmentURLs}}<p><strong>Anexos:</strong></p>
  <ul>{{range .AttachmentURLs}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}
</body>
</html>`

const briefingConfirmationTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Olá {{.ContactName}},</p>
  <p>Recebemos o briefing da {{.Company}}. Nossa equipe vai analisar e retornar em até 2 dias úteis.</p>
  <p><strong>Protocolo: {{.ID}}</strong></p>
  <ul>
    <li>Projeto: {{.ProjectLabel}}</li>
    <li>Telefone: {{.Phone}}</li>
    <li>Prazo desejado: {{.Deadline}}</li>
  </ul>
  <p>Obrigado!</p>
</body>
</html>`

var (
	briefingNotificationTmpl = template.Must(template.New("briefing_notification").Parse(briefingNotificationTemplate))
	briefingConfirmationTmpl = template.Must(template.New("briefing_confirmation").Parse(briefingConfirmationTemplate))
)

func buildBriefingNotificationHTML(b briefings.Briefing) (string, error) {
	var buf bytes.Buffer
	if err := briefingNotificationTmpl.Execute(&buf, newBriefingView(b)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildBriefingConfirmationHTML(b briefings.Briefing) (string, error) {
	if b.ContactName == "" {
		b.ContactName = b.Company
	}
	var buf bytes.Buffer
	if err := briefingConfirmationTmpl.Execute(&buf, newBriefingView(b)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *BrevoClient) SendBriefingNotification(ctx context.Context, b briefings.Briefing) (string, error) {
	htmlBody, err := buildBriefingNotificationHTML(b)
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Novo briefing: %s", b.Company)
	return c.sendHTML(ctx, c.agencyEmail, c.senderName, subject, htmlBody)
}

func (c *BrevoClient) SendBriefingConfirmation(ctx context.Context, b briefings.Briefing) (string, error) {
	htmlBody, err := buildBriefingConfirmationHTML(b)
	if err != nil {
		return "", err
	}
	return c.sendHTML(ctx, b.Email, b.ContactName, "Recebemos seu briefing", htmlBody)
}
