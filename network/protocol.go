package network

import "fmt"

// Protocol verbs. Upper-case verbs are shared by client and server.
const (
	MsgSeed           = "SEED"
	MsgCollect        = "COLETAR_TESOURO"
	MsgAccessRoom     = "ACESSAR_SALA"
	MsgEnterRoom      = "ENTRAR_SALA"
	MsgCollectInRoom  = "COLETAR_TESOURO_SALA"
	MsgExitRoom       = "SAIR_SALA"
	MsgLeaveGame      = "SAIR_DO_JOGO"
	CmdMove           = "mover"
	CmdCollectHere    = "tesouro"
	CmdEnterHere      = "entrar"
	CmdEnterHereAlias = "sala"
	CmdQuit           = "sair"
	CmdRanking        = "ranking"
	CmdUp             = "w"
	CmdDown           = "s"
	CmdLeft           = "a"
	CmdRight          = "d"
)

// Status lines shown to players as-is.
const (
	TextInvalidCommand = "Comando inválido!"
	TextInvalidMove    = "Movimento inválido!"
	TextInvalidPos     = "Posição inválida!"
	TextCollected      = "Tesouro coletado!"
	TextNothingHere    = "Nenhum tesouro aqui!"
	TextNoRoomHere     = "Não há sala do tesouro aqui!"
	TextRoomBusy       = "A sala do tesouro está ocupada. Tente mais tarde."
	TextRoomCleared    = "Esta sala do tesouro já foi esgotada!"
	TextAlreadyInRoom  = "Você já está em uma sala do tesouro!"
	TextNotInRoom      = "Você não está em uma sala do tesouro!"
	TextNotThisRoom    = "Você não está nesta sala do tesouro!"
	TextLeftRoom       = "Você saiu da sala do tesouro."
	TextRoomTimeout    = "Tempo na sala acabou!"
	TextInvalidSlot    = "Tesouro inválido!"
	TextGameOver       = "O jogo terminou!"
	TextGoodbye        = "Até logo!"
	TextRankingHeader  = "Ranking:"
)

func Seed(seed int64) string {
	return fmt.Sprintf("%s %d", MsgSeed, seed)
}

func Collect(x, y int) string {
	return fmt.Sprintf("%s %d %d", MsgCollect, x, y)
}

func EnterRoom(x, y int) string {
	return fmt.Sprintf("%s %d %d", MsgEnterRoom, x, y)
}

func CollectInRoom(x, y, idx int) string {
	return fmt.Sprintf("%s %d %d %d", MsgCollectInRoom, x, y, idx)
}

func Welcome(id int64) string {
	return fmt.Sprintf("Bem-vindo, jogador %d!", id)
}

func Position(x, y int) string {
	return fmt.Sprintf("Você está em %d, %d", x, y)
}

func Moved(x, y int) string {
	return fmt.Sprintf("Você se moveu para %d, %d", x, y)
}

func MovedInRoom(x, y int) string {
	return fmt.Sprintf("Você se moveu para a posição %d, %d da sala", x, y)
}

func RoomEntered(seconds int) string {
	return fmt.Sprintf("Você entrou na sala do tesouro! Tempo: %d segundos", seconds)
}

func TimeLeft(seconds int) string {
	return fmt.Sprintf("Tempo restante: %d segundos", seconds)
}

func RoomExhausted(x, y int) string {
	return fmt.Sprintf("Sala do tesouro (%d, %d) esgotada!", x, y)
}

func PlayerJoined(id int64) string {
	return fmt.Sprintf("Jogador %d entrou no jogo.", id)
}

func PlayerLeft(id int64) string {
	return fmt.Sprintf("Jogador %d saiu do jogo.", id)
}

func Winner(id int64, score int) string {
	return fmt.Sprintf("O jogo terminou! Jogador %d venceu com %d tesouros!", id, score)
}

func RankingLine(rank int, id int64, score int) string {
	return fmt.Sprintf("%d. Jogador %d - %d tesouros", rank, id, score)
}
