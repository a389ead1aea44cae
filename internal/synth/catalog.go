package synth

var firstNames = []string{
	"John", "Sarah", "Michael", "Emma", "David", "Olivia", "James", "Sophia",
	"Robert", "Isabella", "William", "Mia", "Richard", "Charlotte", "Joseph", "Amelia",
	"Thomas", "Harper", "Christopher", "Evelyn", "Daniel", "Abigail", "Matthew", "Emily",
	"Anthony", "Elizabeth", "Mark", "Sofia", "Donald", "Avery", "Steven", "Ella",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
	"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas",
	"Taylor", "Moore", "Jackson", "Martin", "Lee", "Walker", "Hall", "Allen",
	"Young", "King", "Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores",
}

// Products is the demo catalog fake orders draw their product names from.
var Products = []string{
	"Premium Wireless Headphones",
	"Organic Cotton T-Shirt",
	"Smart Watch Pro",
	"Leather Backpack",
	"Running Shoes Elite",
	"Stainless Steel Water Bottle",
	"Yoga Mat Premium",
	"Wireless Keyboard",
	"Coffee Maker Deluxe",
	"Sunglasses Classic",
	"Phone Case Designer",
	"Laptop Stand Ergonomic",
	"Bluetooth Speaker Portable",
	"Fitness Tracker Band",
	"Desk Lamp LED",
	"Travel Mug Insulated",
	"Gaming Mouse RGB",
	"Notebook Set Premium",
	"Portable Charger Fast",
	"Camera Tripod Professional",
}

func pick(r interface{ IntN(int) int }, pool []string) string {
	return pool[r.IntN(len(pool))]
}
