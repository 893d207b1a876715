package gitpanel

import "strings"

// Prioridade fixa de status para agregação em diretórios ancestrais.
// Empate (added == untracked) mantém o primeiro visto na caminhada,
// deterministicamente, porque a caminhada segue a ordem das entradas.
var statusPriority = map[string]int{
	StatusDeleted:   5,
	StatusModified:  4,
	StatusRenamed:   3,
	StatusAdded:     2,
	StatusUntracked: 2,
}

// NormalizePanelPath normaliza um caminho antes de inserção em qualquer
// mapa do painel: barras invertidas viram "/", sem barra final.
func NormalizePanelPath(raw string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")
	for strings.HasSuffix(normalized, "/") && normalized != "/" {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	if normalized == "/" {
		return ""
	}
	return normalized
}

// BuildOverlay converte a lista plana de entradas de status nos dois mapas
// de decoração da árvore: caminho exato → status e diretório ancestral →
// status agregado de maior prioridade entre os descendentes.
//
// Um diretório com entrada direta própria (ex.: rename de diretório) mantém
// seu status direto; a agregação decide apenas o indicador de "alterações
// aninhadas" e sua cor. Recomputado integralmente a cada refresh de status.
func BuildOverlay(entries []StatusEntryDTO) StatusOverlayDTO {
	overlay := StatusOverlayDTO{
		Direct:     make(map[string]string, len(entries)),
		Aggregated: make(map[string]DirStatusDTO),
	}

	for _, entry := range entries {
		status := strings.TrimSpace(entry.Status)
		if status == "" || status == StatusIgnored || status == StatusUnknown {
			continue
		}

		path := NormalizePanelPath(entry.Path)
		if path == "" {
			continue
		}

		overlay.Direct[path] = status
		mergeAncestors(overlay.Aggregated, path, status)

		// A origem de um rename ainda precisa aparecer como alterada,
		// mesmo parecendo um caminho deletado.
		if status == StatusRenamed {
			if previous := NormalizePanelPath(entry.PreviousPath); previous != "" {
				if _, taken := overlay.Direct[previous]; !taken {
					overlay.Direct[previous] = StatusRenamed
				}
				mergeAncestors(overlay.Aggregated, previous, StatusRenamed)
			}
		}
	}

	return overlay
}

// mergeAncestors caminha todos os prefixos estritos de diretório do caminho
// e funde o status da entrada em cada um, maior prioridade vence.
func mergeAncestors(aggregated map[string]DirStatusDTO, path string, status string) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return
	}

	prefix := ""
	for _, part := range parts[:len(parts)-1] {
		if part == "" {
			continue
		}
		if prefix == "" {
			prefix = part
		} else {
			prefix = prefix + "/" + part
		}

		existing, ok := aggregated[prefix]
		if !ok {
			aggregated[prefix] = DirStatusDTO{Status: status, HasNestedChanges: true}
			continue
		}
		if statusPriority[status] > statusPriority[existing.Status] {
			existing.Status = status
		}
		existing.HasNestedChanges = true
		aggregated[prefix] = existing
	}
}
