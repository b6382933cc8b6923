package access

import "fmt"

const (
	msgNotAuthenticated   = "Utilisateur non connecté."
	msgForbidden          = "Accès réservé au personnel."
	msgUnknownMember      = "Code QR membre introuvable."
	msgNoDailyCode        = "Aucun code QR généré pour aujourd'hui."
	msgInvalidCode        = "Code QR invalide ou expiré."
	msgAlreadyInside      = "Vous êtes déjà à l'intérieur de la salle."
	msgNotInside          = "Vous n'êtes pas à l'intérieur de la salle."
	msgScanInProgress     = "Scan déjà en cours. Veuillez patienter."
	msgPersistence        = "Erreur lors de l'enregistrement de l'accès."
	msgTechnical          = "Erreur technique. Veuillez réessayer."
)

func msgMembershipInactive(name string) string {
	return fmt.Sprintf("%s : abonnement expiré ou suspendu.", name)
}

func msgMembershipExpired(endDate string) string {
	return fmt.Sprintf("Votre abonnement a expiré le %s.", endDate)
}

func msgWelcome(name string) string {
	return fmt.Sprintf("Bienvenue %s ! Entrée enregistrée.", name)
}

func msgGoodbye(name string) string {
	return fmt.Sprintf("Au revoir %s ! Sortie enregistrée.", name)
}
