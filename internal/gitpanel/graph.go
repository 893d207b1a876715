package gitpanel

// LayoutLanes atribui um índice de lane determinístico a cada commit de uma
// janela ordenada do mais novo para o mais antigo.
//
// Precondição de entrada: a lista deve ser estritamente reverso-topológica
// (todo commit aparece antes de qualquer um de seus pais), que é a ordem
// natural de `git log`. Entrada fora de ordem não causa pânico, apenas
// degrada para lanes extras.
//
// O algoritmo é uma aproximação gulosa de passada única, não um layout de
// cruzamento mínimo; a continuidade visual entre janelas paginadas não é
// garantida. Trade-off aceito para uma lista de commits com scroll.
func LayoutLanes(commits []CommitDTO) map[string]int {
	laneMap := make(map[string]int, len(commits))

	// Cada slot vazio ("") está livre; um slot preenchido aguarda o hash
	// que a lane espera ver. Um hash é aguardado por no máximo um slot.
	activeLanes := make([]string, 0, 8)

	for _, commit := range commits {
		if commit.Hash == "" {
			continue
		}
		if _, seen := laneMap[commit.Hash]; seen {
			continue
		}

		chosen := laneAwaiting(activeLanes, commit.Hash)
		if chosen < 0 {
			for i, awaited := range activeLanes {
				if awaited == "" {
					chosen = i
					break
				}
			}
		}
		if chosen < 0 {
			activeLanes = append(activeLanes, "")
			chosen = len(activeLanes) - 1
		}

		laneMap[commit.Hash] = chosen

		if len(commit.Parents) == 0 {
			// Commit raiz: libera a lane.
			activeLanes[chosen] = ""
			continue
		}

		// O primeiro pai é a continuação da mainline na lane escolhida.
		// Quando outra lane já aguarda o mesmo pai (duas branches convergindo
		// no mesmo commit), as duas colapsam na mais à esquerda, mantendo o
		// invariante de um hash aguardado por no máximo um slot.
		if existing := laneAwaiting(activeLanes, commit.Parents[0]); existing >= 0 {
			if chosen < existing {
				activeLanes[existing] = ""
				activeLanes[chosen] = commit.Parents[0]
			} else {
				activeLanes[chosen] = ""
			}
		} else {
			activeLanes[chosen] = commit.Parents[0]
		}

		for _, parent := range commit.Parents[1:] {
			if parent == "" {
				continue
			}
			if _, rendered := laneMap[parent]; rendered {
				continue
			}
			if laneAwaiting(activeLanes, parent) >= 0 {
				continue
			}

			slot := -1
			for i, awaited := range activeLanes {
				if awaited == "" && i != chosen {
					slot = i
					break
				}
			}
			if slot < 0 {
				activeLanes = append(activeLanes, parent)
				continue
			}
			activeLanes[slot] = parent
		}
	}

	return laneMap
}

// LaneConnectors deriva os conectores de renderização entre cada commit e
// seus pais dentro da janela: mesma lane → conector reto, lanes diferentes
// → conector curvo. Pais fora da janela não produzem conector (sem linha
// pendurada).
func LaneConnectors(commits []CommitDTO, lanes map[string]int) []LaneEdgeDTO {
	rows := make(map[string]int, len(commits))
	for i, commit := range commits {
		if commit.Hash == "" {
			continue
		}
		if _, seen := rows[commit.Hash]; !seen {
			rows[commit.Hash] = i
		}
	}

	edges := make([]LaneEdgeDTO, 0, len(commits))
	for i, commit := range commits {
		fromLane, ok := lanes[commit.Hash]
		if !ok {
			continue
		}

		for _, parent := range commit.Parents {
			parentRow, inWindow := rows[parent]
			if !inWindow {
				continue
			}
			toLane, ok := lanes[parent]
			if !ok {
				continue
			}

			kind := "curved"
			if toLane == fromLane {
				kind = "straight"
			}

			edges = append(edges, LaneEdgeDTO{
				FromHash: commit.Hash,
				ToHash:   parent,
				FromRow:  i,
				ToRow:    parentRow,
				FromLane: fromLane,
				ToLane:   toLane,
				Kind:     kind,
			})
		}
	}

	return edges
}

func laneAwaiting(activeLanes []string, hash string) int {
	for i, awaited := range activeLanes {
		if awaited == hash {
			return i
		}
	}
	return -1
}
