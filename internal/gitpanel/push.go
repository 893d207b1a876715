package gitpanel

import (
	"context"
	"log"
	"strings"
	"time"
)

// Categorias de falha de push expostas ao painel.
const (
	PushCategoryTransient = "transient"
	PushCategoryAuth      = "auth"
	PushCategoryRejected  = "rejected"
	PushCategoryUnknown   = "unknown"
)

// Atraso fixo entre a tentativa inicial e o único retry de falha transitória.
const pushRetryDelay = 2 * time.Second

var pushTransientSignatures = []string{
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"could not resolve host",
	"network is unreachable",
	"temporary failure",
	"early eof",
	"the remote end hung up",
	"rpc failed",
}

var pushAuthSignatures = []string{
	"authentication failed",
	"permission denied",
	"access denied",
	"403",
	"could not read username",
	"could not read password",
	"publickey",
	"invalid credentials",
}

var pushRejectedSignatures = []string{
	"non-fast-forward",
	"fetch first",
	"[rejected]",
	"updates were rejected",
	"failed to push some refs",
}

// Push envia os commits pendentes ao remote. Com publish=true, publica a
// branch atual criando o upstream. Falhas transitórias de rede ganham
// exatamente um retry após atraso fixo; falhas de autenticação e de
// non-fast-forward retornam imediatamente, já categorizadas.
//
// Push não toca o view model de staging e por isso não segura o lock de
// transação: a rodada de rede e a espera do retry podem durar dezenas de
// segundos, e as escritas já serializam por repositório na fila do backend.
func (m *Manager) Push(ctx context.Context, repoPath string, publish bool) (PushReportDTO, error) {
	if m.backend == nil || m.service == nil {
		return PushReportDTO{}, serviceUnavailableError()
	}

	mode := "push"
	if publish {
		mode = "publish"
	}
	report := PushReportDTO{Mode: mode}

	for attempt := 1; ; attempt++ {
		report.Attempts = attempt
		err := m.backend.PushCommits(ctx, repoPath, publish)
		if err == nil {
			report.Ok = true
			report.Summary = "Commits enviados com sucesso."
			m.refreshAfterPush(ctx, repoPath)
			m.emit("devscope:git_push_result", report)
			return report, nil
		}

		category := classifyPushFailure(err)
		if category == PushCategoryTransient && attempt == 1 {
			log.Printf("[GitPanel] push transitório falhou, aguardando retry: %v", err)
			if sleepErr := m.sleep(ctx, pushRetryDelay); sleepErr != nil {
				report.Category = PushCategoryTransient
				report.Summary = "Push cancelado durante a espera do retry."
				m.emit("devscope:git_push_result", report)
				return report, NormalizeBindingError(sleepErr)
			}
			continue
		}

		report.Category = category
		report.Summary = pushFailureSummary(category)
		m.emit("devscope:git_push_result", report)
		return report, pushFailureError(category, err)
	}
}

// refreshAfterPush atualiza o contador de commits não enviados sob o
// contador de geração da classe.
func (m *Manager) refreshAfterPush(ctx context.Context, repoPath string) {
	err := m.service.refreshRead(RefreshUnpushed, func() (func(), error) {
		count, err := m.backend.CountUnpushed(ctx, repoPath)
		if err != nil {
			return nil, err
		}
		return func() { m.service.View().SetUnpushed(count) }, nil
	})
	if err != nil {
		log.Printf("[GitPanel] refresh de unpushed pós-push falhou: %v", err)
	}
}

// classifyPushFailure mapeia a saída de erro do git para uma categoria do
// painel. Autenticação e rejeição têm precedência sobre transitório, porque
// mensagens de rejeição às vezes carregam fragmentos de rede.
func classifyPushFailure(err error) string {
	if err == nil {
		return PushCategoryUnknown
	}

	combined := strings.ToLower(err.Error())
	if bindingErr := AsBindingError(err); bindingErr != nil {
		combined = strings.ToLower(bindingErr.Message + " | " + bindingErr.Details)
		if bindingErr.Code == CodeTimeout {
			return PushCategoryTransient
		}
	}

	for _, signature := range pushAuthSignatures {
		if strings.Contains(combined, signature) {
			return PushCategoryAuth
		}
	}
	for _, signature := range pushRejectedSignatures {
		if strings.Contains(combined, signature) {
			return PushCategoryRejected
		}
	}
	for _, signature := range pushTransientSignatures {
		if strings.Contains(combined, signature) {
			return PushCategoryTransient
		}
	}
	return PushCategoryUnknown
}

func pushFailureSummary(category string) string {
	switch category {
	case PushCategoryTransient:
		return "Falha de rede ao enviar commits. Tente novamente em instantes."
	case PushCategoryAuth:
		return "Falha de autenticação com o remote. Verifique suas credenciais."
	case PushCategoryRejected:
		return "Push rejeitado pelo remote. Traga as mudanças remotas antes de enviar."
	default:
		return "Falha ao enviar commits para o remote."
	}
}

func pushFailureError(category string, cause error) error {
	details := ""
	if bindingErr := AsBindingError(cause); bindingErr != nil {
		details = bindingErr.Details
	} else if cause != nil {
		details = cause.Error()
	}

	switch category {
	case PushCategoryTransient:
		return NewBindingError(CodePushTransient, pushFailureSummary(category), details)
	case PushCategoryAuth:
		return NewBindingError(CodePushAuth, pushFailureSummary(category), details)
	case PushCategoryRejected:
		return NewBindingError(CodePushRejected, pushFailureSummary(category), details)
	default:
		return NewBindingError(CodeCommandFailed, pushFailureSummary(category), details)
	}
}
