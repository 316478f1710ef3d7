package pfvisitors

import "time"

// Geo ne contient que les champs autorisés ; un champ absent reste nil
type Geo struct {
	City      *string  `bson:"city,omitempty" json:"city,omitempty"`
	Region    *string  `bson:"region,omitempty" json:"region,omitempty"`
	Country   *string  `bson:"country,omitempty" json:"country,omitempty"`
	Latitude  *float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude *float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
}

// Visitor représente un visiteur unique, identifié par son adresse IP
type Visitor struct {
	ID         uint      `bson:"-" json:"-" gorm:"primaryKey"`
	IPAddress  string    `bson:"ip_address" json:"ip_address" gorm:"uniqueIndex;size:64;not null"`
	FirstVisit time.Time `bson:"first_visit" json:"first_visit" gorm:"not null"`
	LastVisit  time.Time `bson:"last_visit" json:"last_visit" gorm:"index;not null"`
	VisitCount int       `bson:"visit_count" json:"visit_count" gorm:"not null;default:1"`
	Geo        Geo       `bson:"geo" json:"geo" gorm:"embedded;embeddedPrefix:geo_"`
}

// TableName spécifie le nom de la table pour Visitor
func (Visitor) TableName() string {
	return "visitors"
}

// Fields retourne les champs geo présents, sous forme de map
func (g Geo) Fields() map[string]any {
	fields := make(map[string]any, 5)
	if g.City != nil {
		fields["city"] = *g.City
	}
	if g.Region != nil {
		fields["region"] = *g.Region
	}
	if g.Country != nil {
		fields["country"] = *g.Country
	}
	if g.Latitude != nil {
		fields["latitude"] = *g.Latitude
	}
	if g.Longitude != nil {
		fields["longitude"] = *g.Longitude
	}
	return fields
}

func (g Geo) IsEmpty() bool {
	return len(g.Fields()) == 0
}

func newVisitor(ip string, geo Geo, at time.Time) Visitor {
	return Visitor{
		IPAddress:  ip,
		FirstVisit: at,
		LastVisit:  at,
		VisitCount: 1,
		Geo:        geo,
	}
}
